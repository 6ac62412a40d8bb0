package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/utafrali/storefront/pkg/cache"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/services/review/internal/domain"
	"github.com/utafrali/storefront/services/review/internal/repository"
)

// --- Mock Review Repository ---

type mockReviewRepository struct {
	mock.Mock
}

func (m *mockReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *mockReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *mockReviewRepository) List(ctx context.Context, filter repository.ReviewFilter) ([]domain.Review, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Review), args.Int(1), args.Error(2)
}

func (m *mockReviewRepository) UpdateStatus(ctx context.Context, id, status string) (*domain.Review, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *mockReviewRepository) IncrementHelpful(ctx context.Context, id string) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

func (m *mockReviewRepository) ApprovedSummary(ctx context.Context, productID string) (domain.RatingSummary, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(domain.RatingSummary), args.Error(1)
}

func (m *mockReviewRepository) ApprovedSummaries(ctx context.Context, productIDs []string) (map[string]domain.RatingSummary, error) {
	args := m.Called(ctx, productIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.RatingSummary), args.Error(1)
}

// --- Mock Product Repository ---

type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) UpdateRating(ctx context.Context, id string, summary domain.RatingSummary) error {
	args := m.Called(ctx, id, summary)
	return args.Error(0)
}

// --- Mock Event Publisher ---

type mockEventPublisher struct {
	mock.Mock
}

func (m *mockEventPublisher) PublishReviewCreated(ctx context.Context, review *domain.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *mockEventPublisher) PublishReviewModerated(ctx context.Context, review *domain.Review, previousStatus string) error {
	args := m.Called(ctx, review, previousStatus)
	return args.Error(0)
}

// --- Recording Notifier ---

type notification struct {
	productID string
	summary   domain.RatingSummary
}

type recordingNotifier struct {
	mu          sync.Mutex
	sent        []notification
	invalidated []string
}

func (n *recordingNotifier) Notify(_ context.Context, productID string, summary domain.RatingSummary) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{productID: productID, summary: summary})
}

func (n *recordingNotifier) Invalidate(_ context.Context, productID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.invalidated = append(n.invalidated, productID)
}

// --- Fake clock ---

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newSummaryCache(clock *fakeClock) *cache.TTLCache[domain.RatingSummary] {
	return cache.New[domain.RatingSummary]("review_summary",
		cache.WithTTL(60*time.Second),
		cache.WithClock(clock.Now),
	)
}

// --- In-memory store ---

// memoryStore is a small in-memory implementation of both repositories used
// by the end-to-end scenarios. It counts aggregation queries.
type memoryStore struct {
	mu             sync.Mutex
	products       map[string]*domain.Product
	reviews        map[string]*domain.Review
	summaryQueries int
}

func newMemoryStore(productIDs ...string) *memoryStore {
	s := &memoryStore{
		products: make(map[string]*domain.Product),
		reviews:  make(map[string]*domain.Review),
	}
	for _, id := range productIDs {
		s.products[id] = &domain.Product{ID: id, Name: "product " + id}
	}
	return s
}

func (s *memoryStore) add(review domain.Review) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews[review.ID] = &review
}

func (s *memoryStore) product(id string) domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.products[id]
}

func (s *memoryStore) Create(_ context.Context, review *domain.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[review.ProductID]; !ok {
		return apperrors.NotFound("product", review.ProductID)
	}
	cp := *review
	s.reviews[review.ID] = &cp
	return nil
}

func (s *memoryStore) GetByID(_ context.Context, id string) (*domain.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return nil, apperrors.NotFound("review", id)
	}
	cp := *r
	return &cp, nil
}

func (s *memoryStore) List(_ context.Context, filter repository.ReviewFilter) ([]domain.Review, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Review
	for _, r := range s.reviews {
		if filter.ProductID != "" && r.ProductID != filter.ProductID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	if filter.Offset >= len(out) {
		return []domain.Review{}, total, nil
	}
	out = out[filter.Offset:]
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (s *memoryStore) UpdateStatus(_ context.Context, id, status string) (*domain.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return nil, apperrors.NotFound("review", id)
	}
	r.Status = status
	cp := *r
	return &cp, nil
}

func (s *memoryStore) IncrementHelpful(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return 0, apperrors.NotFound("review", id)
	}
	r.HelpfulCount++
	return r.HelpfulCount, nil
}

func (s *memoryStore) ApprovedSummary(ctx context.Context, productID string) (domain.RatingSummary, error) {
	m, err := s.ApprovedSummaries(ctx, []string{productID})
	return m[productID], err
}

func (s *memoryStore) ApprovedSummaries(_ context.Context, productIDs []string) (map[string]domain.RatingSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaryQueries++

	sums := make(map[string]int64)
	counts := make(map[string]int64)
	for _, r := range s.reviews {
		if r.Status == domain.ReviewStatusApproved {
			sums[r.ProductID] += int64(r.Rating)
			counts[r.ProductID]++
		}
	}
	out := make(map[string]domain.RatingSummary)
	for _, id := range productIDs {
		if n, ok := counts[id]; ok {
			out[id] = domain.SummaryFromTotals(sums[id], n)
		}
	}
	return out, nil
}

func (s *memoryStore) queries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryQueries
}

// memoryProducts exposes the product half of memoryStore, whose GetByID
// would otherwise collide with the review lookup.
type memoryProducts struct {
	store *memoryStore
}

func (p memoryProducts) GetByID(_ context.Context, id string) (*domain.Product, error) {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	prod, ok := p.store.products[id]
	if !ok {
		return nil, apperrors.NotFound("product", id)
	}
	cp := *prod
	return &cp, nil
}

func (p memoryProducts) UpdateRating(_ context.Context, id string, summary domain.RatingSummary) error {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	prod, ok := p.store.products[id]
	if !ok {
		return apperrors.NotFound("product", id)
	}
	prod.Rating = summary
	return nil
}
