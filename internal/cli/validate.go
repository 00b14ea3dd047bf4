package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/fpang/idcard-ocr/internal/auth"
)

// ResolveDirectory checks that the path exists and is a directory, then
// returns the absolute path.
func ResolveDirectory(dirPath string) (string, error) {
	info, err := os.Stat(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("directory not found: %s", dirPath)
		}
		return "", fmt.Errorf("failed to access directory %s: %w", dirPath, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path is not a directory: %s", dirPath)
	}

	absPath, err := filepath.Abs(dirPath)
	if err == nil {
		dirPath = absPath
	}
	return dirPath, nil
}

// ValidateAndResolveDirectory is ResolveDirectory for command entry points.
// Exits fatally on failure.
func ValidateAndResolveDirectory(dirPath string) string {
	resolved, err := ResolveDirectory(dirPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", dirPath).Msg("Invalid directory")
	}
	return resolved
}

// CredentialHint returns operator guidance for a credential failure.
func CredentialHint(err error) string {
	var validationErr *auth.ValidationError
	if !errors.As(err, &validationErr) {
		return "Unexpected error while loading credentials"
	}
	switch validationErr.Type {
	case auth.ErrTypeMissing:
		return fmt.Sprintf("No credentials configured. Set %s and %s in the environment or a .env file", auth.EnvSecretID, auth.EnvSecretKey)
	case auth.ErrTypeTooShort:
		return "Credential looks truncated. Copy the full value from the cloud console"
	case auth.ErrTypeInvalidChars:
		return "Credential contains unexpected characters. Check for quotes or whitespace in the .env file"
	default:
		return "Credential validation failed"
	}
}

// HandleValidationError logs the credential failure with guidance and exits.
func HandleValidationError(err error) {
	log.Fatal().Err(err).Msg(CredentialHint(err))
	os.Exit(1)
}
