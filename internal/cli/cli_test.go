package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fpang/idcard-ocr/internal/auth"
	"github.com/fpang/idcard-ocr/internal/config"
	"github.com/fpang/idcard-ocr/internal/dispatch"
	"github.com/fpang/idcard-ocr/internal/idcard"
)

func TestFormatDurationShort(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00"},
		{59 * time.Second, "0:59"},
		{90 * time.Second, "1:30"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}
	for _, tt := range tests {
		if got := FormatDurationShort(tt.d); got != tt.want {
			t.Errorf("FormatDurationShort(%s) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatThroughput(t *testing.T) {
	if got := FormatThroughput(25, 2*time.Second); got != "12.5 calls/s" {
		t.Errorf("FormatThroughput = %q", got)
	}
	if got := FormatThroughput(5, 0); got != "0.0 calls/s" {
		t.Errorf("FormatThroughput zero duration = %q", got)
	}
}

func TestResolveDirectory(t *testing.T) {
	dir := t.TempDir()
	got, err := ResolveDirectory(dir)
	if err != nil {
		t.Fatalf("ResolveDirectory: %v", err)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("ResolveDirectory returned relative path %q", got)
	}

	if _, err := ResolveDirectory(filepath.Join(dir, "missing")); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("missing directory error = %v", err)
	}

	file := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ResolveDirectory(file); err == nil || !strings.Contains(err.Error(), "not a directory") {
		t.Errorf("file path error = %v", err)
	}
}

func TestCredentialHint(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&auth.ValidationError{Type: auth.ErrTypeMissing}, auth.EnvSecretID},
		{&auth.ValidationError{Type: auth.ErrTypeTooShort}, "truncated"},
		{&auth.ValidationError{Type: auth.ErrTypeInvalidChars}, "unexpected characters"},
		{errors.New("boom"), "Unexpected error"},
	}
	for _, tt := range tests {
		if got := CredentialHint(tt.err); !strings.Contains(got, tt.want) {
			t.Errorf("CredentialHint(%v) = %q, want it to mention %q", tt.err, got, tt.want)
		}
	}
}

func TestNewSigner(t *testing.T) {
	creds := auth.Credentials{SecretID: "AKIDexampleexampleexample", SecretKey: "keyexampleexampleexample"}
	cfg := &config.Config{Endpoint: "https://ocr.ap-guangzhou.tencentcloudapi.com", Region: "ap-guangzhou"}
	s, err := NewSigner(creds, cfg)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	if s.Host != "ocr.ap-guangzhou.tencentcloudapi.com" || s.Region != "ap-guangzhou" || s.Action != "IDCardOCR" {
		t.Errorf("signer = %+v", s)
	}

	if _, err := NewSigner(creds, &config.Config{Endpoint: "not a url"}); err == nil {
		t.Error("expected error for endpoint without host")
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &config.Config{
		Endpoint:       "https://example.test",
		Timeout:        5 * time.Second,
		MaxRetries:     4,
		RetryBaseDelay: 200 * time.Millisecond,
		MaxImageSizeMB: 1,
		CropPortrait:   true,
	}
	opts := ClientOptions(cfg)
	if opts.MaxAttempts != 4 || opts.BaseDelay != 200*time.Millisecond || opts.Timeout != 5*time.Second {
		t.Errorf("opts = %+v", opts)
	}
	if opts.MaxPayloadBytes != 1024*1024 {
		t.Errorf("MaxPayloadBytes = %d", opts.MaxPayloadBytes)
	}
	if !opts.Config.CropPortrait || opts.Config.CropIdCard {
		t.Errorf("request config = %+v", opts.Config)
	}
}

func TestProgressObserver(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressObserver(&buf)
	p.BatchStarted(4)

	outcomes := []idcard.Outcome{
		idcard.Success(nil),
		idcard.Missing(),
		idcard.APIError("InvalidParameter", "bad"),
		idcard.Exception("cancelled"),
	}
	var wg sync.WaitGroup
	for _, out := range outcomes {
		wg.Add(1)
		go func(out idcard.Outcome) {
			defer wg.Done()
			p.UnitDone(dispatch.Unit{Subject: "a", Side: idcard.Front}, out, time.Millisecond)
		}(out)
	}
	wg.Wait()
	p.BatchFinished()

	if p.Failures() != 2 {
		t.Errorf("Failures() = %d, want 2", p.Failures())
	}
	if !strings.Contains(buf.String(), "4/4") {
		t.Errorf("progress output missing final count: %q", buf.String())
	}
}
