package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

const signatureHeader = "X-Hub-Signature-256"

// ValidateSignature checks the Meta webhook signature over the raw body.
func ValidateSignature(r *http.Request, appSecret string, body []byte) bool {
	signature := r.Header.Get(signatureHeader)
	if signature == "" {
		return false
	}
	signature = strings.TrimPrefix(signature, "sha256=")

	expected := computeSignature(body, appSecret)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// computeSignature computes the hex-encoded HMAC-SHA256 of the payload.
func computeSignature(body []byte, key string) string {
	h := hmac.New(sha256.New, []byte(key))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
