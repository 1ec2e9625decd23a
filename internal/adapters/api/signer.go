package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"

	"github.com/andrescamacho/marketscan-go/internal/adapters/credentials"
	"github.com/andrescamacho/marketscan-go/internal/domain/shared"
)

// Signature headers
const (
	HeaderAPIKey    = "X-Api-Key"
	HeaderSignDate  = "X-Sign-Date"
	HeaderSignature = "X-Request-Sign"
)

// Signer adds HMAC-SHA256 request signatures.
// The signed payload is method + path-with-query + body + unix timestamp, concatenated.
type Signer struct {
	clock shared.Clock
}

// NewSigner creates a signer; if clock is nil, uses RealClock
func NewSigner(clock shared.Clock) *Signer {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Signer{clock: clock}
}

// Sign stamps req with the key, timestamp and signature headers
func (s *Signer) Sign(req *http.Request, body []byte, keys credentials.KeyPair) {
	ts := strconv.FormatInt(s.clock.Now().Unix(), 10)
	sig := ComputeSignature(keys.SecretKey.Reveal(), req.Method, req.URL.RequestURI(), body, ts)

	req.Header.Set(HeaderAPIKey, keys.PublicKey)
	req.Header.Set(HeaderSignDate, ts)
	req.Header.Set(HeaderSignature, sig)
}

// ComputeSignature returns the hex HMAC-SHA256 of the canonical payload
func ComputeSignature(secret, method, pathWithQuery string, body []byte, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(method))
	mac.Write([]byte(pathWithQuery))
	mac.Write(body)
	mac.Write([]byte(timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signature in constant time
func VerifySignature(secret, method, pathWithQuery string, body []byte, timestamp, signature string) bool {
	want := ComputeSignature(secret, method, pathWithQuery, body, timestamp)
	return hmac.Equal([]byte(want), []byte(signature))
}
