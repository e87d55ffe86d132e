package signing

import "fmt"

// AuthError is a typed verification failure carrying the HTTP status
// spec.md §4.1's failure taxonomy maps it to: 400 for a malformed
// header, 401 for everything else (unknown keyId, bad signature, stale
// timestamp, replay, digest mismatch).
type AuthError struct {
	Status  int
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

const (
	CodeMalformed    = "MALFORMED_AUTHORIZATION"
	CodeUnknownKeyID = "UNKNOWN_KEY_ID"
	CodeBadSignature = "BAD_SIGNATURE"
	CodeStale        = "STALE_TIMESTAMP"
	CodeReplay       = "REPLAYED_NONCE"
	CodeDigest       = "DIGEST_MISMATCH"
)

func errMalformed(msg string) *AuthError {
	return &AuthError{Status: 400, Code: CodeMalformed, Message: msg}
}

func errUnauthorized(code, msg string) *AuthError {
	return &AuthError{Status: 401, Code: code, Message: msg}
}
