package middleware

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func metricsRouter(service string, status int) *chi.Mux {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics(service))
	r.Get("/api/v1/products/{productId}/reviews/summary", func(w http.ResponseWriter, r *http.Request) {
		if status != 0 {
			w.WriteHeader(status)
		}
		_, _ = w.Write([]byte("{}"))
	})
	return r
}

func TestPrometheusMetrics_LabelsByRoutePattern(t *testing.T) {
	r := metricsRouter("metrics-route", 0)

	for _, id := range []string{"a", "b", "c"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products/"+id+"/reviews/summary", nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	counter := httpRequestsTotal.WithLabelValues("metrics-route", http.MethodGet,
		"/api/v1/products/{productId}/reviews/summary", "200")
	assert.Equal(t, float64(3), testutil.ToFloat64(counter))
	assert.Equal(t, float64(0), testutil.ToFloat64(httpRequestsInFlight.WithLabelValues("metrics-route")))
}

func TestPrometheusMetrics_RecordsExplicitStatus(t *testing.T) {
	r := metricsRouter("metrics-status", http.StatusServiceUnavailable)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/x/reviews/summary", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	counter := httpRequestsTotal.WithLabelValues("metrics-status", http.MethodGet,
		"/api/v1/products/{productId}/reviews/summary", "503")
	assert.Equal(t, float64(1), testutil.ToFloat64(counter))
}

type flushRecorder struct {
	*httptest.ResponseRecorder
	flushes int
}

func (f *flushRecorder) Flush() { f.flushes++ }

type hijackRecorder struct {
	http.ResponseWriter
	hijacked bool
}

func (h *hijackRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h.hijacked = true
	return nil, nil, nil
}

// plainWriter implements neither Flusher nor Hijacker.
type plainWriter struct{ header http.Header }

func (p *plainWriter) Header() http.Header {
	if p.header == nil {
		p.header = make(http.Header)
	}
	return p.header
}
func (p *plainWriter) Write(b []byte) (int, error) { return len(b), nil }
func (p *plainWriter) WriteHeader(int)             {}

func TestMetricsResponseWriter_Passthrough(t *testing.T) {
	fr := &flushRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw := &statusWriter{ResponseWriter: fr}
	rw.Flush()
	assert.Equal(t, 1, fr.flushes)

	hr := &hijackRecorder{ResponseWriter: httptest.NewRecorder()}
	rw = &statusWriter{ResponseWriter: hr}
	_, _, err := rw.Hijack()
	assert.NoError(t, err)
	assert.True(t, hr.hijacked)

	rw = &statusWriter{ResponseWriter: &plainWriter{}}
	assert.NotPanics(t, rw.Flush)
	_, _, err = rw.Hijack()
	assert.ErrorIs(t, err, http.ErrNotSupported)
}

func TestMetricsResponseWriter_FirstStatusWins(t *testing.T) {
	rw := &statusWriter{ResponseWriter: &plainWriter{}, statusCode: http.StatusOK}
	rw.WriteHeader(http.StatusCreated)
	rw.WriteHeader(http.StatusInternalServerError)
	assert.Equal(t, http.StatusCreated, rw.statusCode)
}
