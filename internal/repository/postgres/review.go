package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/servease/marketplace-api/internal/model"
)

const reviewColumns = `id, booking_id, service_id, customer_id, rating, comment, created_at, updated_at`

func (r *reviewRepository) Create(ctx context.Context, review *model.Review) error {
	query := `
		INSERT INTO reviews (id, booking_id, service_id, customer_id, rating, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	review.ID = uuid.New()
	review.CreatedAt = time.Now()
	review.UpdatedAt = review.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		review.ID,
		review.BookingID,
		review.ServiceID,
		review.CustomerID,
		review.Rating,
		review.Comment,
		review.CreatedAt,
		review.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

func (r *reviewRepository) GetByBooking(ctx context.Context, bookingID uuid.UUID) (*model.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE booking_id = $1`

	var review model.Review
	if err := r.db.GetContext(ctx, &review, query, bookingID); err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return &review, nil
}

func (r *reviewRepository) ListByService(ctx context.Context, serviceID uuid.UUID, p model.Pagination) ([]*model.Review, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM reviews WHERE service_id = $1`, serviceID); err != nil {
		return nil, 0, fmt.Errorf("failed to count reviews: %w", err)
	}

	p.Normalize()
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE service_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	var reviews []*model.Review
	if err := r.db.SelectContext(ctx, &reviews, query, serviceID, p.PageSize, p.Offset()); err != nil {
		return nil, 0, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, total, nil
}

func (r *reviewRepository) AggregateByService(ctx context.Context, serviceID uuid.UUID) (float64, int, error) {
	query := `SELECT COALESCE(AVG(rating), 0), COUNT(*) FROM reviews WHERE service_id = $1`

	var avg float64
	var count int
	if err := r.db.QueryRowxContext(ctx, query, serviceID).Scan(&avg, &count); err != nil {
		return 0, 0, fmt.Errorf("failed to aggregate reviews: %w", err)
	}
	return avg, count, nil
}
