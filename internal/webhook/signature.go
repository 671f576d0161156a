package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// SignatureHeader carries "sha256=<hex hmac of the raw body>".
const SignatureHeader = "x-webhook-signature"

var ErrUnauthorized = errors.New("invalid webhook signature")

// Sign returns the header value a sender would attach to body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against an HMAC-SHA256 of body. An empty secret
// disables verification; a configured secret with a missing header fails.
func VerifySignature(body []byte, header, secret string) error {
	if secret == "" {
		return nil
	}
	if header == "" {
		return ErrUnauthorized
	}

	received, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(header), "sha256="))
	if err != nil {
		return ErrUnauthorized
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(received, mac.Sum(nil)) {
		return ErrUnauthorized
	}
	return nil
}
