// Package ocr provides a client for the remote ID card recognition action.
//
// Each Call submits one image for one card side and always returns a terminal
// idcard.Outcome: extracted fields on success, the service's error code and
// message on a rejection, or an exception describing a transport, encoding or
// compression failure. Transient failures (transport errors, HTTP 5xx and
// throttling/timeout codes) are retried with exponential backoff inside Call;
// everything else is returned on the first attempt.
//
// Requests are signed with auth.Signer. Images whose base64 form exceeds the
// payload ceiling are compressed once before the first attempt.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/idcard-ocr/internal/auth"
	"github.com/fpang/idcard-ocr/internal/idcard"
	"github.com/fpang/idcard-ocr/internal/imaging"
)

const (
	// DefaultEndpoint is the public recognition endpoint.
	DefaultEndpoint = "https://ocr.tencentcloudapi.com"
	// Service, Action and Version identify the signed API call.
	Service = "ocr"
	Action  = "IDCardOCR"
	Version = "2018-11-19"

	// DefaultTimeout bounds a single HTTP attempt.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxAttempts is the total number of tries for a transient failure.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is the wait before the second attempt; it doubles after.
	DefaultBaseDelay = time.Second
	// DefaultMaxPayloadBytes is the ceiling on the base64 image field.
	DefaultMaxPayloadBytes = 10 * 1024 * 1024

	maxResponseBytes = 1 << 20
)

// Compressor shrinks an image until its base64 form fits maxEncoded bytes.
type Compressor interface {
	Compress(raw []byte, maxEncoded int) (*imaging.Result, error)
}

// RequestConfig is the per-call options object. It travels as a JSON string,
// not as a nested object.
type RequestConfig struct {
	CropIdCard   bool `json:"CropIdCard"`
	CropPortrait bool `json:"CropPortrait"`
}

// Options configures a Client. Zero values select the defaults.
type Options struct {
	Endpoint        string
	Timeout         time.Duration
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxPayloadBytes int
	Config          RequestConfig
	Compressor      Compressor
	HTTPClient      *http.Client
}

// Client calls the recognition action.
type Client struct {
	httpClient  *http.Client
	endpoint    string
	signer      *auth.Signer
	compressor  Compressor
	config      RequestConfig
	maxAttempts int
	baseDelay   time.Duration
	maxPayload  int
	now         func() time.Time
}

// NewClient creates a Client that signs every attempt with signer.
func NewClient(signer *auth.Signer, opts Options) *Client {
	c := &Client{
		httpClient:  opts.HTTPClient,
		endpoint:    opts.Endpoint,
		signer:      signer,
		compressor:  opts.Compressor,
		config:      opts.Config,
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		maxPayload:  opts.MaxPayloadBytes,
		now:         time.Now,
	}
	if c.endpoint == "" {
		c.endpoint = DefaultEndpoint
	}
	if c.httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	if c.compressor == nil {
		c.compressor = imaging.NewCompressor()
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	if c.baseDelay <= 0 {
		c.baseDelay = DefaultBaseDelay
	}
	if c.maxPayload <= 0 {
		c.maxPayload = DefaultMaxPayloadBytes
	}
	return c
}

// --- Wire types ---

type request struct {
	ImageBase64 string `json:"ImageBase64"`
	CardSide    string `json:"CardSide,omitempty"`
	Config      string `json:"Config"`
}

type responseEnvelope struct {
	Response *responseBody `json:"Response"`
}

type responseBody struct {
	Name      string `json:"Name"`
	Sex       string `json:"Sex"`
	Nation    string `json:"Nation"`
	Birth     string `json:"Birth"`
	Address   string `json:"Address"`
	IdNum     string `json:"IdNum"`
	Authority string `json:"Authority"`
	ValidDate string `json:"ValidDate"`

	Error     *apiErrorBody `json:"Error,omitempty"`
	RequestID string        `json:"RequestId"`
}

type apiErrorBody struct {
	Code    string `json:"Code"`
	Message string `json:"Message"`
}

// --- Call ---

// Call recognises one card side. The returned outcome is always terminal.
func (c *Client) Call(ctx context.Context, image []byte, side idcard.Side) idcard.Outcome {
	encoded, compressed, err := c.encodeImage(image)
	if err != nil {
		log.Error().Err(err).Str("side", string(side)).Msg("Failed to prepare image payload")
		return idcard.Exception(err.Error())
	}

	body, err := c.buildRequest(encoded, side)
	if err != nil {
		return idcard.Exception(err.Error())
	}

	var (
		resp     *responseBody
		lastErr  error
		attempts int
	)
	for attempts = 1; attempts <= c.maxAttempts; attempts++ {
		resp, lastErr = c.post(ctx, body)
		if lastErr == nil {
			break
		}
		if ctx.Err() != nil || !shouldRetry(lastErr) || attempts == c.maxAttempts {
			break
		}

		delay := c.baseDelay << (attempts - 1)
		log.Warn().
			Err(lastErr).
			Str("side", string(side)).
			Int("attempt", attempts).
			Int("maxAttempts", c.maxAttempts).
			Dur("retryIn", delay).
			Msg("OCR call failed, retrying")
		if err := sleepWithCtx(ctx, delay); err != nil {
			break
		}
	}

	var out idcard.Outcome
	if lastErr == nil {
		out = idcard.Success(mapFields(side, resp))
		log.Debug().Str("side", string(side)).Str("requestId", resp.RequestID).Int("attempts", attempts).Msg("OCR call succeeded")
	} else {
		out = c.failureOutcome(ctx, lastErr, attempts)
	}
	out.Attempts = attempts
	out.Compressed = compressed
	return out
}

func (c *Client) failureOutcome(ctx context.Context, err error, attempts int) idcard.Outcome {
	if ctx.Err() != nil {
		return idcard.Exception("cancelled")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		log.Error().Str("code", apiErr.Code).Str("requestId", apiErr.RequestID).Msg("OCR API error: " + apiErr.Message)
		return idcard.APIError(apiErr.Code, apiErr.Message)
	}
	if shouldRetry(err) {
		log.Error().Err(err).Int("attempts", attempts).Msg("OCR call failed after all attempts")
		return idcard.Exception(fmt.Sprintf("API call failed after %d attempts: %v", attempts, err))
	}
	log.Error().Err(err).Msg("OCR call failed")
	return idcard.Exception(err.Error())
}

// encodeImage returns the base64 payload, compressing once if the image is
// over the ceiling.
func (c *Client) encodeImage(image []byte) (string, bool, error) {
	if imaging.EncodedLen(len(image)) <= c.maxPayload {
		return base64.StdEncoding.EncodeToString(image), false, nil
	}

	log.Info().
		Int("encodedBytes", imaging.EncodedLen(len(image))).
		Int("limitBytes", c.maxPayload).
		Msg("Image exceeds payload limit, compressing")
	res, err := c.compressor.Compress(image, c.maxPayload)
	if err != nil {
		return "", false, fmt.Errorf("image compression failed: %w", err)
	}
	if res.EncodedSize() > c.maxPayload {
		return "", false, fmt.Errorf("compressed image is %d bytes, limit %d", res.EncodedSize(), c.maxPayload)
	}
	return base64.StdEncoding.EncodeToString(res.Data), true, nil
}

func (c *Client) buildRequest(encoded string, side idcard.Side) ([]byte, error) {
	cfg, err := json.Marshal(c.config)
	if err != nil {
		return nil, fmt.Errorf("encode request config: %w", err)
	}
	body, err := json.Marshal(request{
		ImageBase64: encoded,
		CardSide:    string(side),
		Config:      string(cfg),
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return body, nil
}

// post performs one signed attempt.
func (c *Client) post(ctx context.Context, body []byte) (*responseBody, error) {
	startTime := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header = c.signer.Sign(body, c.now())

	httpResp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		log.Debug().Int("statusCode", 0).Dur("duration", duration).Err(err).Msg("OCR API response")
		return nil, &transportError{err: fmt.Errorf("request failed: %w", err)}
	}
	defer httpResp.Body.Close()

	log.Debug().Int("statusCode", httpResp.StatusCode).Dur("duration", duration).Msg("OCR API response")

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, &transportError{err: fmt.Errorf("read response: %w", err)}
	}
	if httpResp.StatusCode >= 500 {
		return nil, &StatusError{StatusCode: httpResp.StatusCode, Body: truncate(string(data), 200)}
	}

	var env responseEnvelope
	if err := json.Unmarshal(data, &env); err != nil || env.Response == nil {
		if httpResp.StatusCode >= 300 {
			return nil, &StatusError{StatusCode: httpResp.StatusCode, Body: truncate(string(data), 200)}
		}
		return nil, fmt.Errorf("parse response: unexpected body: %s", truncate(string(data), 200))
	}

	if e := env.Response.Error; e != nil {
		return nil, &APIError{Code: e.Code, Message: e.Message, RequestID: env.Response.RequestID}
	}
	return env.Response, nil
}

// sleepWithCtx waits for d or until ctx is done.
func sleepWithCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// truncate returns the first n characters of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
