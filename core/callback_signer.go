package core

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HMACCallbackSigner signs the identity with a shared secret using
// hex encoded HMAC-SHA256.
type HMACCallbackSigner struct {
	Secret string
}

func NewHMACCallbackSigner(secret string) *HMACCallbackSigner {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil
	}
	return &HMACCallbackSigner{Secret: secret}
}

func (s *HMACCallbackSigner) Sign(identity string) string {
	if s == nil || s.Secret == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(s.Secret))
	_, _ = mac.Write([]byte(strings.TrimSpace(identity)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *HMACCallbackSigner) Verify(identity string, signature string) bool {
	if s == nil || s.Secret == "" {
		return true
	}
	provided, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(provided) == 0 {
		return false
	}
	expected, _ := hex.DecodeString(s.Sign(identity))
	return hmac.Equal(provided, expected)
}

var _ CallbackSigner = (*HMACCallbackSigner)(nil)
