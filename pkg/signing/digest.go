package signing

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"
)

// digestPrefix is the only digest algorithm spec.md §4.1 names.
const digestPrefix = "sha-256="

// Digest computes the `Digest: sha-256=<base64>` header value for body.
func Digest(body []byte) string {
	sum := sha256.Sum256(body)
	return digestPrefix + base64.StdEncoding.EncodeToString(sum[:])
}

// VerifyDigest reports whether header is a well-formed sha-256 digest
// that matches body byte-for-byte.
func VerifyDigest(header string, body []byte) bool {
	if !strings.HasPrefix(header, digestPrefix) {
		return false
	}
	want, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, digestPrefix))
	if err != nil {
		return false
	}
	got := sha256.Sum256(body)
	return subtle.ConstantTimeCompare(want, got[:]) == 1
}
