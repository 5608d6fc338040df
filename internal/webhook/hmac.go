package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

var errVerification = errors.New("webhook verification failed")

// verifySignature checks an HMAC-SHA256 signature of body, given either as
// plain hex or in the "sha256=<hex>" form GitHub sends. Every failure returns
// the same error so callers cannot learn why a signature was rejected.
func verifySignature(body []byte, signature, secret string) error {
	if secret == "" || signature == "" {
		return errVerification
	}
	got, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return errVerification
	}
	if subtle.ConstantTimeCompare(sign(body, secret), got) != 1 {
		return errVerification
	}
	return nil
}

func sign(body []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

// SignatureHeaderValue returns the "sha256=<hex>" signature for body, for
// clients and tests that need to produce a valid request.
func SignatureHeaderValue(body []byte, secret string) string {
	return "sha256=" + hex.EncodeToString(sign(body, secret))
}
