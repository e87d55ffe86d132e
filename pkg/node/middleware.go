package node

import (
	"bytes"
	"io"
	"net/http"

	"github.com/secchiware/secchiware/internal/logger"
	"github.com/secchiware/secchiware/pkg/httpx"
	"github.com/secchiware/secchiware/pkg/signing"
)

// verifySignature wraps a handler with secchiware-hmac-256 verification
// per spec.md §4.1. The verified body is re-attached to the request so
// the wrapped handler can still read it.
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

		if _, err := verifier.Verify(r.Context(), req); err != nil {
			httpx.WriteError(w, log, err)
			return
		}

		next(w, r)
	}
}
