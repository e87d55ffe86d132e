package signing

import (
	"crypto/hmac"
	"crypto/sha256"
)

// Sign computes the HMAC-SHA256 of canonical over secret.
func Sign(secret []byte, canonical string) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(canonical))
	return mac.Sum(nil)
}

// Verify reports whether sig is the correct HMAC-SHA256 of canonical
// under secret, using a constant-time comparison.
func Verify(secret []byte, canonical string, sig []byte) bool {
	expected := Sign(secret, canonical)
	return hmac.Equal(expected, sig)
}
