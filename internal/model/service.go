package model

import (
	"github.com/google/uuid"
)

// Service is a bookable offering published by a provider. Price is in whole
// currency units; TotalBookings is maintained by the payment workflow.
type Service struct {
	Base
	ProviderID    uuid.UUID `db:"provider_id" json:"provider_id"`
	CategoryID    uuid.UUID `db:"category_id" json:"category_id"`
	Name          string    `db:"name" json:"name"`
	Description   string    `db:"description" json:"description"`
	Price         int64     `db:"price" json:"price"`
	Duration      int       `db:"duration" json:"duration"` // in minutes
	Active        bool      `db:"active" json:"active"`
	TotalBookings int       `db:"total_bookings" json:"total_bookings"`
	RatingAvg     float64   `db:"rating_avg" json:"rating_avg"`
	RatingCount   int       `db:"rating_count" json:"rating_count"`
}

type CreateServiceRequest struct {
	CategoryID  uuid.UUID `json:"category_id" binding:"required"`
	Name        string    `json:"name" binding:"required,max=100"`
	Description string    `json:"description" binding:"max=1000"`
	Price       int64     `json:"price" binding:"required,gt=0"`
	Duration    int       `json:"duration" binding:"required,gt=0"`
}

type UpdateServiceRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=100"`
	Description *string `json:"description" binding:"omitempty,max=1000"`
	Price       *int64  `json:"price" binding:"omitempty,gt=0"`
	Duration    *int    `json:"duration" binding:"omitempty,gt=0"`
	Active      *bool   `json:"active"`
}

// ServiceFilters enumerates the supported catalog filters.
type ServiceFilters struct {
	CategoryID uuid.UUID
	ProviderID uuid.UUID
	MinPrice   *int64
	MaxPrice   *int64
	Search     string
	ActiveOnly bool
	Pagination
}
