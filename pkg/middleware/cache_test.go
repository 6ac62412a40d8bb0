package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func statusHandler(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
		_, _ = w.Write([]byte(`{}`))
	})
}

func TestCacheControl_SuccessfulGet(t *testing.T) {
	handler := CacheControl(30, 60)(statusHandler(http.StatusOK))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "public, max-age=30, stale-while-revalidate=60", rr.Header().Get("Cache-Control"))
}

func TestCacheControl_ImplicitOK(t *testing.T) {
	handler := CacheControl(30, 0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "public, max-age=30", rr.Header().Get("Cache-Control"))
}

func TestCacheControl_ErrorIsNotCacheable(t *testing.T) {
	handler := CacheControl(30, 60)(statusHandler(http.StatusServiceUnavailable))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}

func TestCacheControl_NonGetUntouched(t *testing.T) {
	handler := CacheControl(30, 60)(statusHandler(http.StatusCreated))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Empty(t, rr.Header().Get("Cache-Control"))
}

func TestNoStore(t *testing.T) {
	handler := NoStore(statusHandler(http.StatusOK))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}
