package auth

import (
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	// EnvSecretID names the environment variable holding the secret id.
	EnvSecretID = "TENCENTCLOUD_SECRET_ID"
	// EnvSecretKey names the environment variable holding the secret key.
	EnvSecretKey = "TENCENTCLOUD_SECRET_KEY"

	minCredentialLength = 20
	credentialCharset   = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
)

// Credentials is the secret id/key pair used to sign OCR requests.
type Credentials struct {
	SecretID  string
	SecretKey string
}

// String never prints the secret key.
func (c Credentials) String() string {
	return "Credentials{SecretID: " + Redact(c.SecretID) + "}"
}

// Redact keeps the first four characters of a secret for log correlation.
func Redact(secret string) string {
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + strings.Repeat("*", len(secret)-4)
}

// GetCredentials reads credentials from the environment and validates their
// format. Callers load any .env file beforehand.
func GetCredentials() (Credentials, error) {
	creds := Credentials{
		SecretID:  os.Getenv(EnvSecretID),
		SecretKey: os.Getenv(EnvSecretKey),
	}
	if err := Validate(creds); err != nil {
		log.Error().Err(err).Msg("Failed to load OCR credentials")
		return Credentials{}, err
	}
	log.Debug().Str("secret_id", Redact(creds.SecretID)).Msg("Using credentials from environment")
	return creds, nil
}

// Validate checks that both secrets are present, long enough and drawn from
// the allowed character set.
func Validate(c Credentials) error {
	if c.SecretID == "" || c.SecretKey == "" {
		return &ValidationError{
			Type:    ErrTypeMissing,
			Message: "missing required environment variables " + EnvSecretID + " and " + EnvSecretKey,
		}
	}
	for _, field := range []struct{ name, value string }{
		{EnvSecretID, c.SecretID},
		{EnvSecretKey, c.SecretKey},
	} {
		if len(field.value) < minCredentialLength {
			return &ValidationError{
				Type:    ErrTypeTooShort,
				Message: field.name + " appears invalid (too short)",
			}
		}
		if strings.Trim(field.value, credentialCharset) != "" {
			return &ValidationError{
				Type:    ErrTypeInvalidChars,
				Message: field.name + " contains invalid characters",
			}
		}
	}
	return nil
}
