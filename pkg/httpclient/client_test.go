package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{
		Timeout:         2 * time.Second,
		MaxRetries:      2,
		RetryWaitMin:    time.Millisecond,
		RetryWaitMax:    5 * time.Millisecond,
		MaxConnsPerHost: 4,
		UserAgent:       "review-test",
	}
}

// statusSequence answers with codes in order, then 200 forever.
func statusSequence(calls *atomic.Int32, codes ...int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))
		if n <= len(codes) {
			w.WriteHeader(codes[n-1])
			return
		}
		_, _ = w.Write([]byte(`{"data":{"avg":4.5,"total":2}}`))
	}
}

func send(t *testing.T, c *Client, method, url, body string) (*http.Response, error) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	return c.Do(context.Background(), req)
}

func TestDo_RetryPolicy(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		codes      []int
		wantStatus int
		wantCalls  int32
	}{
		{"get recovers from 503", http.MethodGet, []int{503, 502}, 200, 3},
		{"get gives up after retries", http.MethodGet, []int{503, 503, 503, 503}, 503, 3},
		{"post is never retried", http.MethodPost, []int{503}, 503, 1},
		{"501 is final", http.MethodGet, []int{501}, 501, 1},
		{"4xx is final", http.MethodGet, []int{404}, 404, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(statusSequence(&calls, tt.codes...))
			defer srv.Close()

			resp, err := send(t, New(fastConfig()), tt.method, srv.URL+"/api/v1/products/p/reviews/summary", "")
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestDo_RetriedPutReplaysBody(t *testing.T) {
	var calls atomic.Int32
	var mu sync.Mutex
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		mu.Unlock()
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, err := send(t, New(fastConfig()), http.MethodPut, srv.URL, `{"status":"approved"}`)
	require.NoError(t, err)
	resp.Body.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{`{"status":"approved"}`, `{"status":"approved"}`}, bodies)
}

func TestDo_SetsUserAgent(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.UserAgent())
	}))
	defer srv.Close()

	resp, err := send(t, New(fastConfig()), http.MethodGet, srv.URL, "")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "review-test", got.Load())
}

func TestDo_CanceledContextStopsRetrying(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(statusSequence(&calls, 503, 503, 503))
	defer srv.Close()

	cfg := fastConfig()
	cfg.RetryWaitMin = time.Second
	cfg.RetryWaitMax = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = New(cfg).Do(ctx, req)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), calls.Load())
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, isRetryableError(nil))
	assert.False(t, isRetryableError(context.Canceled))
	assert.False(t, isRetryableError(io.EOF))
}

func TestBackoff(t *testing.T) {
	c := New(Config{RetryWaitMin: 100 * time.Millisecond, RetryWaitMax: 300 * time.Millisecond})

	for i := 0; i < 50; i++ {
		first := c.backoff(1)
		assert.GreaterOrEqual(t, first, 75*time.Millisecond)
		assert.LessOrEqual(t, first, 125*time.Millisecond)

		capped := c.backoff(5)
		assert.GreaterOrEqual(t, capped, 225*time.Millisecond)
		assert.LessOrEqual(t, capped, 375*time.Millisecond)
	}
	assert.Zero(t, addJitter(0))
}
