package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Verifier checks X-Signature: lowercase hex HMAC-SHA256 of the raw body.
type Verifier struct{ secret []byte }

func NewVerifier(secret string) Verifier { return Verifier{secret: []byte(secret)} }

func (v Verifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares in constant time. An empty signature never verifies.
func (v Verifier) Verify(body []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" || len(v.secret) == 0 {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
