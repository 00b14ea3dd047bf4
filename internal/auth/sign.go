package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// Algorithm is the signing algorithm name carried in the Authorization header.
	Algorithm = "TC3-HMAC-SHA256"
	// ContentType is the only content type the signer covers.
	ContentType = "application/json; charset=utf-8"

	signedHeaders = "content-type;host;x-tc-action"
	scopeTerminal = "tc3_request"
)

// Signer produces TC3-HMAC-SHA256 request headers for one service action.
type Signer struct {
	creds   Credentials
	Service string
	Host    string
	Action  string
	Version string
	Region  string
}

// NewSigner returns a Signer for the given service endpoint and action.
func NewSigner(creds Credentials, service, host, action, version string) *Signer {
	return &Signer{
		creds:   creds,
		Service: service,
		Host:    host,
		Action:  action,
		Version: version,
	}
}

// Sign returns the headers for a POST of payload made at ts. The payload must
// be sent byte-for-byte as signed.
func (s *Signer) Sign(payload []byte, ts time.Time) http.Header {
	ts = ts.UTC()
	date := ts.Format("2006-01-02")
	timestamp := strconv.FormatInt(ts.Unix(), 10)

	canonicalHeaders := "content-type:" + ContentType + "\n" +
		"host:" + s.Host + "\n" +
		"x-tc-action:" + strings.ToLower(s.Action) + "\n"
	canonicalRequest := strings.Join([]string{
		http.MethodPost,
		"/",
		"",
		canonicalHeaders,
		signedHeaders,
		sha256Hex(payload),
	}, "\n")

	scope := date + "/" + s.Service + "/" + scopeTerminal
	stringToSign := strings.Join([]string{
		Algorithm,
		timestamp,
		scope,
		sha256Hex([]byte(canonicalRequest)),
	}, "\n")

	secretDate := hmacSHA256([]byte("TC3"+s.creds.SecretKey), date)
	secretService := hmacSHA256(secretDate, s.Service)
	secretSigning := hmacSHA256(secretService, scopeTerminal)
	signature := hex.EncodeToString(hmacSHA256(secretSigning, stringToSign))

	h := make(http.Header)
	h.Set("Authorization", Algorithm+
		" Credential="+s.creds.SecretID+"/"+scope+
		", SignedHeaders="+signedHeaders+
		", Signature="+signature)
	h.Set("Content-Type", ContentType)
	h.Set("Host", s.Host)
	h.Set("X-TC-Action", s.Action)
	h.Set("X-TC-Timestamp", timestamp)
	h.Set("X-TC-Version", s.Version)
	if s.Region != "" {
		h.Set("X-TC-Region", s.Region)
	}
	return h
}

func hmacSHA256(key []byte, msg string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
