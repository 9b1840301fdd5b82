package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/servease/marketplace-api/internal/model"
)

const serviceColumns = `
	id, provider_id, category_id, name, description, price, duration, active,
	total_bookings, rating_avg, rating_count, created_at, updated_at`

func (r *serviceRepository) Create(ctx context.Context, service *model.Service) error {
	query := `
		INSERT INTO services (
			id, provider_id, category_id, name, description, price, duration,
			active, total_bookings, rating_avg, rating_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	service.ID = uuid.New()
	service.CreatedAt = time.Now()
	service.UpdatedAt = service.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		service.ID,
		service.ProviderID,
		service.CategoryID,
		service.Name,
		service.Description,
		service.Price,
		service.Duration,
		service.Active,
		service.TotalBookings,
		service.RatingAvg,
		service.RatingCount,
		service.CreatedAt,
		service.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	return nil
}

func (r *serviceRepository) Get(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE id = $1`

	var service model.Service
	if err := r.db.GetContext(ctx, &service, query, id); err != nil {
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return &service, nil
}

func (r *serviceRepository) GetActive(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE id = $1 AND active = true`

	var service model.Service
	if err := r.db.GetContext(ctx, &service, query, id); err != nil {
		return nil, fmt.Errorf("failed to get active service: %w", err)
	}
	return &service, nil
}

func (r *serviceRepository) Update(ctx context.Context, service *model.Service) error {
	query := `
		UPDATE services
		SET name = $1, description = $2, price = $3, duration = $4, active = $5, updated_at = $6
		WHERE id = $7
	`
	service.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		service.Name,
		service.Description,
		service.Price,
		service.Duration,
		service.Active,
		service.UpdatedAt,
		service.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update service: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("service not found")
	}
	return nil
}

func (r *serviceRepository) List(ctx context.Context, filters *model.ServiceFilters) ([]*model.Service, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	argCount := 1

	if filters.ActiveOnly {
		where = append(where, "active = true")
	}
	if filters.CategoryID != uuid.Nil {
		where = append(where, fmt.Sprintf("category_id = $%d", argCount))
		args = append(args, filters.CategoryID)
		argCount++
	}
	if filters.ProviderID != uuid.Nil {
		where = append(where, fmt.Sprintf("provider_id = $%d", argCount))
		args = append(args, filters.ProviderID)
		argCount++
	}
	if filters.MinPrice != nil {
		where = append(where, fmt.Sprintf("price >= $%d", argCount))
		args = append(args, *filters.MinPrice)
		argCount++
	}
	if filters.MaxPrice != nil {
		where = append(where, fmt.Sprintf("price <= $%d", argCount))
		args = append(args, *filters.MaxPrice)
		argCount++
	}
	if filters.Search != "" {
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", argCount, argCount))
		args = append(args, "%"+filters.Search+"%")
		argCount++
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM services WHERE ` + whereClause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count services: %w", err)
	}

	filters.Normalize()
	query := fmt.Sprintf(`SELECT `+serviceColumns+` FROM services WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		whereClause, argCount, argCount+1)
	args = append(args, filters.PageSize, filters.Offset())

	var services []*model.Service
	if err := r.db.SelectContext(ctx, &services, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list services: %w", err)
	}
	return services, total, nil
}

func (r *serviceRepository) AddBookingsTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, delta int) error {
	query := `
		UPDATE services
		SET total_bookings = total_bookings + $1, updated_at = $2
		WHERE id = $3
	`
	result, err := tx.ExecContext(ctx, query, delta, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update service bookings: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("service not found")
	}
	return nil
}

func (r *serviceRepository) UpdateRating(ctx context.Context, id uuid.UUID, avg float64, count int) error {
	query := `UPDATE services SET rating_avg = $1, rating_count = $2, updated_at = $3 WHERE id = $4`
	if _, err := r.db.ExecContext(ctx, query, avg, count, time.Now(), id); err != nil {
		return fmt.Errorf("failed to update service rating: %w", err)
	}
	return nil
}
