// Package reviewclient is a Go client for the review service HTTP API.
package reviewclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/utafrali/storefront/pkg/cache"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
)

const serviceName = "review"

// DefaultSummaryTTL is how long a summary is served from the client cache.
const DefaultSummaryTTL = 30 * time.Second

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// CircuitOpenFallback turns an open breaker into a retryable 503.
func CircuitOpenFallback(_ context.Context, err error) (*http.Response, error) {
	return nil, apperrors.Unavailable(err)
}

type cachedSummary struct {
	summary Summary
	marker  int64
}

// Client calls the review service.
type Client struct {
	baseURL   string
	doer      HTTPDoer
	userID    string
	summaries *cache.TTLCache[cachedSummary]
	logger    *slog.Logger

	summaryTTL time.Duration
	clock      func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithSummaryTTL overrides DefaultSummaryTTL.
func WithSummaryTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.summaryTTL = ttl
	}
}

// WithCacheClock sets the clock of the summary cache. Intended for tests.
func WithCacheClock(now func() time.Time) Option {
	return func(c *Client) {
		c.clock = now
	}
}

// WithUserID sends id as X-User-ID on review submissions.
func WithUserID(id string) Option {
	return func(c *Client) {
		c.userID = id
	}
}

// New creates a client for the service at baseURL using doer.
func New(baseURL string, doer HTTPDoer, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		doer:       doer,
		logger:     logger,
		summaryTTL: DefaultSummaryTTL,
	}
	for _, opt := range opts {
		opt(c)
	}

	cacheOpts := []cache.Option{cache.WithTTL(c.summaryTTL)}
	if c.clock != nil {
		cacheOpts = append(cacheOpts, cache.WithClock(c.clock))
	}
	c.summaries = cache.New[cachedSummary]("client_summary", cacheOpts...)
	return c
}

// NewDefault creates a client behind a retrying HTTP client and a circuit breaker.
func NewDefault(baseURL string, logger *slog.Logger, opts ...Option) *Client {
	cfg := httpclient.DefaultConfig()
	cfg.UserAgent = "storefront-reviewclient"
	base := httpclient.New(cfg)
	cb := httpclient.NewCircuitBreakerClient(base, httpclient.DefaultCircuitBreakerConfig("review-client"), logger).
		WithFallback(CircuitOpenFallback)
	return New(baseURL, cb, logger, opts...)
}

// ListReviews returns one page of a product's approved reviews.
func (c *Client) ListReviews(ctx context.Context, productID string, opts ListOptions) (*ReviewPage, error) {
	q := url.Values{}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}
	target := c.productURL(productID) + "/reviews"
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	var page ReviewPage
	if err := c.call(ctx, http.MethodGet, target, nil, http.StatusOK, &page); err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return &page, nil
}

// CreateReview submits a review for productID. A successful submission drops
// the cached summary of productID.
func (c *Client) CreateReview(ctx context.Context, productID string, req CreateReviewRequest) (*Review, error) {
	var resp envelope[Review]
	if err := c.call(ctx, http.MethodPost, c.productURL(productID)+"/reviews", req, http.StatusCreated, &resp); err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}
	c.Invalidate(productID)
	return &resp.Data, nil
}

// MarkHelpful records a helpful vote and returns the review's new count.
func (c *Client) MarkHelpful(ctx context.Context, reviewID string) (int, error) {
	var resp envelope[struct {
		HelpfulCount int `json:"helpful_count"`
	}]
	target := c.baseURL + "/api/v1/reviews/" + url.PathEscape(reviewID) + "/helpful"
	if err := c.call(ctx, http.MethodPost, target, nil, http.StatusOK, &resp); err != nil {
		return 0, fmt.Errorf("mark review helpful: %w", err)
	}
	return resp.Data.HelpfulCount, nil
}

// Marker returns the durable change marker of productID.
func (c *Client) Marker(ctx context.Context, productID string) (Marker, error) {
	var resp envelope[Marker]
	if err := c.call(ctx, http.MethodGet, c.productURL(productID)+"/reviews/summary/marker", nil, http.StatusOK, &resp); err != nil {
		return Marker{}, fmt.Errorf("get summary marker: %w", err)
	}
	return resp.Data, nil
}

// Summary returns the rating summary of productID, from the client cache
// when a fresh copy is held.
func (c *Client) Summary(ctx context.Context, productID string) (Summary, error) {
	key := strings.ToLower(productID)
	gen := c.summaries.Generation(key)
	if hit, ok := c.summaries.Get(key); ok {
		return hit.summary, nil
	}

	// The marker is read before the summary so a change landing in between
	// leaves the cached copy looking older, never newer, than it is.
	var marker int64
	if m, err := c.Marker(ctx, key); err != nil {
		c.logger.DebugContext(ctx, "summary marker unavailable",
			slog.String("product_id", key),
			slog.String("error", err.Error()),
		)
	} else {
		marker = m.Marker
	}

	var resp envelope[Summary]
	if err := c.call(ctx, http.MethodGet, c.productURL(key)+"/reviews/summary", nil, http.StatusOK, &resp); err != nil {
		return Summary{}, fmt.Errorf("get summary: %w", err)
	}
	c.summaries.SetIfUnchanged(key, cachedSummary{summary: resp.Data, marker: marker}, gen)
	return resp.Data, nil
}

// Revalidate compares the cached summary of productID against the service's
// marker and drops it when the marker has advanced. It reports whether the
// cached copy was dropped.
func (c *Client) Revalidate(ctx context.Context, productID string) (bool, error) {
	key := strings.ToLower(productID)
	hit, ok := c.summaries.Get(key)
	if !ok {
		return false, nil
	}

	m, err := c.Marker(ctx, key)
	if err != nil {
		return false, err
	}
	if m.Marker <= hit.marker {
		return false, nil
	}
	c.summaries.Delete(key)
	return true, nil
}

// Invalidate drops the cached summary of productID.
func (c *Client) Invalidate(productID string) {
	c.summaries.Delete(strings.ToLower(productID))
}

// BulkSummary returns the summaries of many products in one request.
// Malformed identifiers are absent from the result.
func (c *Client) BulkSummary(ctx context.Context, productIDs []string) (map[string]Summary, error) {
	if len(productIDs) == 0 {
		return map[string]Summary{}, nil
	}

	var resp envelope[map[string]Summary]
	body := struct {
		IDs []string `json:"ids"`
	}{IDs: productIDs}
	if err := c.call(ctx, http.MethodPost, c.baseURL+"/api/v1/reviews/summary/bulk", body, http.StatusOK, &resp); err != nil {
		return nil, fmt.Errorf("get bulk summary: %w", err)
	}
	if resp.Data == nil {
		resp.Data = map[string]Summary{}
	}
	return resp.Data, nil
}

func (c *Client) productURL(productID string) string {
	return c.baseURL + "/api/v1/products/" + url.PathEscape(productID)
}

func (c *Client) call(ctx context.Context, method, target string, body any, want int, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" && method == http.MethodPost {
		req.Header.Set("X-User-ID", c.userID)
	}

	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("call review service: %w", err)
	}
	if resp.StatusCode != want {
		return httpclient.ParseResponseError(resp, serviceName)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
