package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/servease/marketplace-api/internal/model"
)

func (r *categoryRepository) Create(ctx context.Context, category *model.ServiceCategory) error {
	query := `
		INSERT INTO service_categories (id, name, description, icon, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	category.ID = uuid.New()
	category.CreatedAt = time.Now()
	category.UpdatedAt = category.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		category.ID,
		category.Name,
		category.Description,
		category.Icon,
		category.Active,
		category.CreatedAt,
		category.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

func (r *categoryRepository) Get(ctx context.Context, id uuid.UUID) (*model.ServiceCategory, error) {
	query := `
		SELECT id, name, description, icon, active, created_at, updated_at
		FROM service_categories
		WHERE id = $1
	`
	var category model.ServiceCategory
	if err := r.db.GetContext(ctx, &category, query, id); err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &category, nil
}

func (r *categoryRepository) List(ctx context.Context, activeOnly bool) ([]*model.ServiceCategory, error) {
	query := `
		SELECT id, name, description, icon, active, created_at, updated_at
		FROM service_categories
	`
	if activeOnly {
		query += " WHERE active = true"
	}
	query += " ORDER BY name ASC"

	var categories []*model.ServiceCategory
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}
