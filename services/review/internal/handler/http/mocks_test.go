package http

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/utafrali/storefront/pkg/pagination"
	"github.com/utafrali/storefront/services/review/internal/broadcast"
	"github.com/utafrali/storefront/services/review/internal/domain"
	"github.com/utafrali/storefront/services/review/internal/service"
)

type mockReviewService struct {
	mock.Mock
}

func (m *mockReviewService) CreateReview(ctx context.Context, input *service.CreateReviewInput) (*domain.Review, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *mockReviewService) ListReviews(ctx context.Context, input service.ListReviewsInput) (pagination.Result[domain.Review], error) {
	args := m.Called(ctx, input)
	return args.Get(0).(pagination.Result[domain.Review]), args.Error(1)
}

func (m *mockReviewService) ListForModeration(ctx context.Context, status string, page, limit int) (pagination.Result[domain.Review], error) {
	args := m.Called(ctx, status, page, limit)
	return args.Get(0).(pagination.Result[domain.Review]), args.Error(1)
}

func (m *mockReviewService) ModerateReview(ctx context.Context, reviewID, status string) (*domain.Review, error) {
	args := m.Called(ctx, reviewID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *mockReviewService) MarkHelpful(ctx context.Context, reviewID string) (int, error) {
	args := m.Called(ctx, reviewID)
	return args.Int(0), args.Error(1)
}

func (m *mockReviewService) RecomputeProduct(ctx context.Context, productID string) (domain.RatingSummary, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(domain.RatingSummary), args.Error(1)
}

type mockSummaryService struct {
	mock.Mock
}

func (m *mockSummaryService) SummaryFor(ctx context.Context, productID string) (domain.Summary, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(domain.Summary), args.Error(1)
}

func (m *mockSummaryService) BulkSummaryFor(ctx context.Context, productIDs []string) (map[string]domain.Summary, error) {
	args := m.Called(ctx, productIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.Summary), args.Error(1)
}

// busSource serves markers from a map and subscriptions from a real bus.
type busSource struct {
	bus     *broadcast.Bus
	markers map[string]time.Time
	err     error
}

func newBusSource() *busSource {
	return &busSource{bus: broadcast.NewBus(8), markers: make(map[string]time.Time)}
}

func (s *busSource) Marker(_ context.Context, productID string) (time.Time, error) {
	if s.err != nil {
		return time.Time{}, s.err
	}
	return s.markers[productID], nil
}

func (s *busSource) Subscribe() (<-chan broadcast.Invalidation, func()) {
	return s.bus.Subscribe()
}
