// Package httpx holds the small pieces of HTTP plumbing shared by both
// secchiware-node and secchiware-c2: the error response envelope and
// the mapping from internal error taxonomy to HTTP status codes.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/secchiware/secchiware/internal/logger"
	"github.com/secchiware/secchiware/pkg/c2/query"
	"github.com/secchiware/secchiware/pkg/c2/store"
	"github.com/secchiware/secchiware/pkg/loader"
	"github.com/secchiware/secchiware/pkg/signing"
)

// authScheme is the challenge scheme named in the WWW-Authenticate
// header spec.md §4.1/§7(ii) require on every 401 response.
const authScheme = "SECCHIWARE-HMAC-256"

// ErrorResponse is the JSON body returned for every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteError maps err to an HTTP status per spec.md §7's taxonomy and
// writes ErrorResponse as the body. Internal errors (taxonomy vi) are
// logged server-side with full detail but reported to the client with a
// generic message only.
func WriteError(w http.ResponseWriter, log logger.Logger, err error) {
	status, message := classify(err)
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", authScheme)
	}
	if status == http.StatusInternalServerError {
		log.Error("internal error", logger.Error(err))
		message = "internal error"
	}
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// classify maps a typed or sentinel error to (status, message).
func classify(err error) (int, string) {
	var authErr *signing.AuthError
	if errors.As(err, &authErr) {
		return authErr.Status, authErr.Message
	}

	var unknownName *loader.ErrUnknownName
	if errors.As(err, &unknownName) {
		return http.StatusNotFound, unknownName.Error()
	}

	var invalidParam *query.ErrInvalidParameter
	if errors.As(err, &invalidParam) {
		return http.StatusBadRequest, invalidParam.Error()
	}

	var secErr *logger.SecchiwareError
	if errors.As(err, &secErr) {
		return statusForCode(secErr.Code), secErr.Message
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, store.ErrActiveSessionConflict):
		return http.StatusConflict, "an active session already exists for this endpoint"
	case errors.Is(err, store.ErrSessionActive):
		return http.StatusBadRequest, "session is still active"
	}

	return http.StatusInternalServerError, err.Error()
}

func statusForCode(code string) int {
	switch code {
	case logger.ErrCodeValidation:
		return http.StatusBadRequest
	case logger.ErrCodeAuthentication:
		return http.StatusUnauthorized
	case logger.ErrCodeNotFound:
		return http.StatusNotFound
	case logger.ErrCodeConflict:
		return http.StatusConflict
	case logger.ErrCodeUnsupportedMedia:
		return http.StatusUnsupportedMediaType
	case logger.ErrCodeUpstream:
		return http.StatusBadGateway
	case logger.ErrCodeUnreachable:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes v as a JSON response body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
