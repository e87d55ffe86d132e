package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/secchiware/secchiware/internal/logger"
	"github.com/secchiware/secchiware/pkg/c2/store"
	"github.com/secchiware/secchiware/pkg/loader"
	"github.com/secchiware/secchiware/pkg/signing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteErrorMapsNotFound(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, logger.NewDefaultLogger(), store.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWriteErrorMapsActiveSessionConflict(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, logger.NewDefaultLogger(), store.ErrActiveSessionConflict)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestWriteErrorMapsSecchiwareErrorCode(t *testing.T) {
	w := httptest.NewRecorder()
	err := logger.NewSecchiwareError(logger.ErrCodeUpstream, "node returned garbage", nil)
	WriteError(w, logger.NewDefaultLogger(), err)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestWriteErrorHidesInternalDetailFromClient(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, logger.NewDefaultLogger(), errors.New("leaked db password in this message"))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "leaked db password")
}

func TestWriteErrorMapsUnknownSelectorName(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, logger.NewDefaultLogger(), &loader.ErrUnknownName{Name: "p1.m.S.z"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWriteErrorSetsChallengeHeaderOnAuthFailure(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, logger.NewDefaultLogger(), &signing.AuthError{Status: http.StatusUnauthorized, Code: signing.CodeBadSignature, Message: "bad signature"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "SECCHIWARE-HMAC-256", w.Header().Get("WWW-Authenticate"))
}

func TestWriteErrorOmitsChallengeHeaderOnNon401(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, logger.NewDefaultLogger(), store.ErrNotFound)
	assert.Empty(t, w.Header().Get("WWW-Authenticate"))
}
