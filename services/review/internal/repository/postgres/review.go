package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/services/review/internal/domain"
	"github.com/utafrali/storefront/services/review/internal/repository"
)

const reviewColumns = `id, product_id, user_id, author_name, author_email, rating, title, comment,
		       status, helpful_count, verified_purchase, created_at, updated_at`

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create inserts a new review into the database.
func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) (err error) {
	query := `
		INSERT INTO product_reviews (` + reviewColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	ctx, end := database.TraceQuery(ctx, "CreateReview", query)
	defer func() { end(err) }()

	_, err = r.pool.Exec(ctx, query,
		review.ID,
		review.ProductID,
		review.UserID,
		review.AuthorName,
		review.AuthorEmail,
		review.Rating,
		review.Title,
		review.Comment,
		review.Status,
		review.HelpfulCount,
		review.VerifiedPurchase,
		review.CreatedAt,
		review.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperrors.NotFound("product", review.ProductID)
		}
		return fmt.Errorf("insert review: %w", err)
	}

	return nil
}

// GetByID retrieves a review by its ID.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (_ *domain.Review, err error) {
	query := `SELECT ` + reviewColumns + ` FROM product_reviews WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetReview", query)
	defer func() { end(err) }()

	rv, err := scanReview(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, fmt.Errorf("get review: %w", err)
	}
	return rv, nil
}

// List returns reviews matching the filter along with the total count.
func (r *ReviewRepository) List(ctx context.Context, filter repository.ReviewFilter) (_ []domain.Review, _ int, err error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.ProductID != "" {
		conditions = append(conditions, fmt.Sprintf("product_id = $%d", argIndex))
		args = append(args, filter.ProductID)
		argIndex++
	}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, filter.Status)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Use count(*) OVER() for total count in a single query.
	query := fmt.Sprintf(`
		SELECT %s,
		       count(*) OVER() AS total_count
		FROM product_reviews
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		reviewColumns, whereClause, orderBy(filter.Sort), argIndex, argIndex+1,
	)
	args = append(args, filter.Limit, filter.Offset)

	ctx, end := database.TraceQuery(ctx, "ListReviews", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var (
		reviews    []domain.Review
		totalCount int
	)

	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(append(reviewDest(&rv), &totalCount)...); err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, rv)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}

	if reviews == nil {
		reviews = []domain.Review{}
	}

	return reviews, totalCount, nil
}

// UpdateStatus sets a review's moderation status and returns the updated row.
func (r *ReviewRepository) UpdateStatus(ctx context.Context, id, status string) (_ *domain.Review, err error) {
	query := `
		UPDATE product_reviews
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + reviewColumns

	ctx, end := database.TraceQuery(ctx, "UpdateReviewStatus", query)
	defer func() { end(err) }()

	rv, err := scanReview(r.pool.QueryRow(ctx, query, id, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, fmt.Errorf("update review status: %w", err)
	}
	return rv, nil
}

// IncrementHelpful adds one to the helpful counter in place.
func (r *ReviewRepository) IncrementHelpful(ctx context.Context, id string) (_ int, err error) {
	query := `
		UPDATE product_reviews
		SET helpful_count = helpful_count + 1
		WHERE id = $1
		RETURNING helpful_count`

	ctx, end := database.TraceQuery(ctx, "IncrementReviewHelpful", query)
	defer func() { end(err) }()

	var count int
	if err = r.pool.QueryRow(ctx, query, id).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.NotFound("review", id)
		}
		return 0, fmt.Errorf("increment helpful count: %w", err)
	}
	return count, nil
}

// ApprovedSummary aggregates the approved reviews of one product.
func (r *ReviewRepository) ApprovedSummary(ctx context.Context, productID string) (_ domain.RatingSummary, err error) {
	query := `
		SELECT COALESCE(SUM(rating), 0), COUNT(*)
		FROM product_reviews
		WHERE product_id = $1 AND status = $2`

	ctx, end := database.TraceQuery(ctx, "ApprovedReviewSummary", query)
	defer func() { end(err) }()

	var sum, count int64
	if err = r.pool.QueryRow(ctx, query, productID, domain.ReviewStatusApproved).Scan(&sum, &count); err != nil {
		return domain.RatingSummary{}, fmt.Errorf("get review summary: %w", err)
	}

	return domain.SummaryFromTotals(sum, count), nil
}

// ApprovedSummaries aggregates many products with one GROUP BY query.
func (r *ReviewRepository) ApprovedSummaries(ctx context.Context, productIDs []string) (_ map[string]domain.RatingSummary, err error) {
	summaries := make(map[string]domain.RatingSummary, len(productIDs))
	if len(productIDs) == 0 {
		return summaries, nil
	}

	query := `
		SELECT product_id, SUM(rating), COUNT(*)
		FROM product_reviews
		WHERE product_id = ANY($1) AND status = $2
		GROUP BY product_id`

	ctx, end := database.TraceQuery(ctx, "ApprovedReviewSummaries", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, productIDs, domain.ReviewStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("get review summaries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			productID  string
			sum, count int64
		)
		if err := rows.Scan(&productID, &sum, &count); err != nil {
			return nil, fmt.Errorf("scan review summary row: %w", err)
		}
		summaries[productID] = domain.SummaryFromTotals(sum, count)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review summary rows: %w", err)
	}

	return summaries, nil
}

func orderBy(sort string) string {
	switch sort {
	case domain.SortTop:
		return "rating DESC, created_at DESC, id"
	case domain.SortOld:
		return "created_at ASC, id"
	default:
		return "created_at DESC, id"
	}
}

func reviewDest(rv *domain.Review) []any {
	return []any{
		&rv.ID,
		&rv.ProductID,
		&rv.UserID,
		&rv.AuthorName,
		&rv.AuthorEmail,
		&rv.Rating,
		&rv.Title,
		&rv.Comment,
		&rv.Status,
		&rv.HelpfulCount,
		&rv.VerifiedPurchase,
		&rv.CreatedAt,
		&rv.UpdatedAt,
	}
}

func scanReview(row pgx.Row) (*domain.Review, error) {
	var rv domain.Review
	if err := row.Scan(reviewDest(&rv)...); err != nil {
		return nil, err
	}
	return &rv, nil
}

// isForeignKeyViolation reports a PostgreSQL foreign key violation (SQLSTATE 23503).
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
