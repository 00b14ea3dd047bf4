package cli

import (
	"fmt"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/fpang/idcard-ocr/internal/auth"
	"github.com/fpang/idcard-ocr/internal/config"
	"github.com/fpang/idcard-ocr/internal/ocr"
)

// NewSigner builds the request signer for cfg's endpoint.
func NewSigner(creds auth.Credentials, cfg *config.Config) (*auth.Signer, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid OCR endpoint %q", cfg.Endpoint)
	}
	signer := auth.NewSigner(creds, ocr.Service, u.Host, ocr.Action, ocr.Version)
	signer.Region = cfg.Region
	return signer, nil
}

// ClientOptions maps the run configuration onto OCR client options.
func ClientOptions(cfg *config.Config) ocr.Options {
	return ocr.Options{
		Endpoint:        cfg.Endpoint,
		Timeout:         cfg.Timeout,
		MaxAttempts:     cfg.MaxRetries,
		BaseDelay:       cfg.RetryBaseDelay,
		MaxPayloadBytes: cfg.MaxPayloadBytes(),
		Config: ocr.RequestConfig{
			CropIdCard:   cfg.CropIDCard,
			CropPortrait: cfg.CropPortrait,
		},
	}
}

// InitOCRClient loads credentials and creates the OCR client.
// Exits fatally on failure.
func InitOCRClient(cfg *config.Config) *ocr.Client {
	creds, err := auth.GetCredentials()
	if err != nil {
		HandleValidationError(err)
	}

	signer, err := NewSigner(creds, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create request signer")
	}

	client := ocr.NewClient(signer, ClientOptions(cfg))
	log.Info().
		Str("endpoint", cfg.Endpoint).
		Str("secret_id", auth.Redact(creds.SecretID)).
		Msg("OCR client initialized")
	return client
}
