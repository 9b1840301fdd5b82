package model

import (
	"github.com/google/uuid"
)

// Review is one customer's rating of one completed booking.
type Review struct {
	Base
	BookingID  uuid.UUID `db:"booking_id" json:"booking_id"`
	ServiceID  uuid.UUID `db:"service_id" json:"service_id"`
	CustomerID uuid.UUID `db:"customer_id" json:"customer_id"`
	Rating     int       `db:"rating" json:"rating"`
	Comment    string    `db:"comment" json:"comment,omitempty"`
}

type CreateReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"max=1000"`
}
