package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/pkg/logger"
)

func TestRequestLogging_CorrelationID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"generated when absent", "", false},
		{"caller id kept", "req-abc", true},
		{"oversized id replaced", strings.Repeat("x", maxCorrelationIDLen+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := slog.New(slog.NewJSONHandler(&buf, nil))

			var seen string
			h := RequestLogging(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = logger.CorrelationIDFromContext(r.Context())
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(`{"data":{}}`))
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/products/p/reviews", nil)
			if tt.incoming != "" {
				req.Header.Set(correlationHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.NotEmpty(t, seen)
			assert.Equal(t, seen, rec.Header().Get(correlationHeader))
			if tt.keep {
				assert.Equal(t, tt.incoming, seen)
			} else {
				assert.NotEqual(t, tt.incoming, seen)
			}

			var line map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
			assert.Equal(t, "http request", line["msg"])
			assert.Equal(t, float64(http.StatusCreated), line["status"])
			assert.Equal(t, float64(len(`{"data":{}}`)), line["bytes"])
			assert.Equal(t, seen, line["correlation_id"])
		})
	}
}
