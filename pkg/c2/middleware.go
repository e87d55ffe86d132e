package c2

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/secchiware/secchiware/internal/logger"
	"github.com/secchiware/secchiware/internal/metrics"
	"github.com/secchiware/secchiware/pkg/httpx"
	"github.com/secchiware/secchiware/pkg/signing"
)

type contextKey int

const signedKeyIDKey contextKey = iota

// verifySignature wraps a handler with secchiware-hmac-256 verification,
// stashing the verified keyId in the request context so handlers can
// check it against the active-node table entry (e.g. DELETE
// /environments/{ip}/{port} must match the registering identity).
func verifySignature(verifier *signing.Verifier, log logger.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			var err error
			body, err = io.ReadAll(r.Body)
			if err != nil {
				httpx.WriteError(w, log, err)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		req := signing.Request{
			Method:   r.Method,
			Path:     r.URL.Path,
			RawQuery: r.URL.RawQuery,
			Header:   signing.ValuesFromHTTPRequest(r),
			Body:     body,
		}

		header, err := verifier.Verify(r.Context(), req)
		if err != nil {
			reason := "unknown"
			if authErr, ok := err.(*signing.AuthError); ok {
				reason = authErr.Code
			}
			metrics.SignatureVerificationFailures.WithLabelValues(reason).Inc()
			httpx.WriteError(w, log, err)
			return
		}

		ctx := context.WithValue(r.Context(), signedKeyIDKey, header.KeyID)
		next(w, r.WithContext(ctx))
	}
}

// signedKeyID returns the keyId verified by verifySignature for this
// request, or "" if the route isn't signature-protected.
func signedKeyID(ctx context.Context) string {
	v, _ := ctx.Value(signedKeyIDKey).(string)
	return v
}
