package signing

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/secchiware/secchiware/pkg/broker"
)

// Request is the subset of an inbound HTTP request the Verifier needs.
// Header lookups are case-insensitive on Name via Values.Get.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Header   Values
	Body     []byte
}

// Values is a minimal case-insensitive header map, so callers can adapt
// from net/http.Header (which is already keyed by canonical MIME form)
// or from any other source without pulling net/http into this package.
type Values map[string]string

// Get looks up name case-insensitively.
func (v Values) Get(name string) (string, bool) {
	val, ok := v[strings.ToLower(name)]
	return val, ok
}

// Verifier enforces spec.md §4.1's verification checklist: unknown
// keyId, digest mismatch, stale timestamp, replay, and constant-time
// signature comparison.
type Verifier struct {
	keys   KeyStore
	broker broker.Broker
	skew   time.Duration
	// RequiredHeaders lists the headers the caller mandates be part of
	// the signed set, e.g. {"host", "timestamp"}; VerifyDigest is
	// additionally required whenever Body is non-empty.
	RequiredHeaders []string
	// TimestampHeader names the freshness header to check (default
	// "timestamp").
	TimestampHeader string
}

// NewVerifier creates a Verifier. skew <= 0 uses DefaultSkewWindow.
func NewVerifier(keys KeyStore, brk broker.Broker, skew time.Duration) *Verifier {
	if skew <= 0 {
		skew = DefaultSkewWindow
	}
	return &Verifier{
		keys:            keys,
		broker:          brk,
		skew:            skew,
		RequiredHeaders: []string{"host", "timestamp"},
		TimestampHeader: "timestamp",
	}
}

// Verify validates req's Authorization header and returns the parsed
// header on success, or an *AuthError on failure.
func (v *Verifier) Verify(ctx context.Context, req Request) (*Header, error) {
	authValue, ok := req.Header.Get("Authorization")
	if !ok {
		return nil, errMalformed("missing Authorization header")
	}

	parsed, err := ParseAuthorization(authValue)
	if err != nil {
		return nil, errMalformed(err.Error())
	}

	if err := v.checkRequiredHeaders(parsed, req.Body); err != nil {
		return nil, err
	}

	secret, ok := v.keys.Secret(parsed.KeyID)
	if !ok {
		return nil, errUnauthorized(CodeUnknownKeyID, fmt.Sprintf("unknown keyId %q", parsed.KeyID))
	}

	if len(req.Body) > 0 {
		digest, ok := req.Header.Get("Digest")
		if !ok || !VerifyDigest(digest, req.Body) {
			return nil, errUnauthorized(CodeDigest, "body digest mismatch")
		}
	}

	if err := v.checkFreshness(parsed, req.Header); err != nil {
		return nil, err
	}

	fields, err := v.resolveHeaders(parsed.Headers, req.Header)
	if err != nil {
		return nil, err
	}

	canonical := CanonicalString(req.Method, req.Path, req.RawQuery, fields)
	if !Verify(secret, canonical, parsed.Signature) {
		return nil, errUnauthorized(CodeBadSignature, "signature verification failed")
	}

	// Replay is checked against the now-verified signature, not just the
	// timestamp: two distinct legitimate requests from the same keyId
	// can land in the same timestamp second, and the signature (unforgeable
	// without the secret) is what actually identifies a single request.
	if err := v.checkReplay(ctx, parsed); err != nil {
		return nil, err
	}

	return parsed, nil
}

func (v *Verifier) checkRequiredHeaders(h *Header, body []byte) error {
	signed := make(map[string]bool, len(h.Headers))
	for _, name := range h.Headers {
		signed[strings.ToLower(name)] = true
	}
	for _, required := range v.RequiredHeaders {
		if !signed[strings.ToLower(required)] {
			return errMalformed(fmt.Sprintf("signed header list must include %q", required))
		}
	}
	if len(body) > 0 && !signed["digest"] {
		return errMalformed("requests with a body must sign the digest header")
	}
	return nil
}

func (v *Verifier) resolveHeaders(names []string, header Values) ([]HeaderField, error) {
	fields := make([]HeaderField, 0, len(names))
	for _, name := range names {
		value, ok := header.Get(name)
		if !ok {
			return nil, errMalformed(fmt.Sprintf("signed header %q not present on request", name))
		}
		fields = append(fields, HeaderField{Name: name, Value: value})
	}
	return fields, nil
}

func (v *Verifier) checkFreshness(h *Header, header Values) error {
	raw, ok := header.Get(v.TimestampHeader)
	if !ok {
		return errMalformed(fmt.Sprintf("missing %s header", v.TimestampHeader))
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return errMalformed(fmt.Sprintf("malformed %s header: %v", v.TimestampHeader, err))
	}

	skew := time.Since(ts)
	if skew < 0 {
		skew = -skew
	}
	if skew > v.skew {
		return errUnauthorized(CodeStale, fmt.Sprintf("timestamp outside skew window of %s", v.skew))
	}
	return nil
}

func (v *Verifier) checkReplay(ctx context.Context, h *Header) error {
	if v.broker == nil {
		return nil
	}
	key := fmt.Sprintf("nonce:%s:%s", h.KeyID, base64.StdEncoding.EncodeToString(h.Signature))

	count, err := v.broker.Incr(ctx, key, 2*v.skew)
	if err != nil {
		return &AuthError{Status: 500, Code: "BROKER_ERROR", Message: err.Error()}
	}
	if count > 1 {
		return errUnauthorized(CodeReplay, "replayed request")
	}
	return nil
}
