package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/servease/marketplace-api/pkg/gateway"
)

type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "pending"
	BookingStatusConfirmed  BookingStatus = "confirmed"
	BookingStatusInProgress BookingStatus = "in_progress"
	BookingStatusCompleted  BookingStatus = "completed"
	BookingStatusCancelled  BookingStatus = "cancelled"
	BookingStatusRefunded   BookingStatus = "refunded"
)

// Terminal reports whether no further transition is defined out of s.
func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingStatusCompleted, BookingStatusCancelled, BookingStatusRefunded:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// CancelReasonPaymentFailed is stored when a booking is cancelled because
// its payment failed.
const CancelReasonPaymentFailed = "Payment failed"

// Address is the structured service address captured on the booking.
type Address struct {
	Street   string `db:"street" json:"street"`
	City     string `db:"city" json:"city"`
	State    string `db:"state" json:"state"`
	Pincode  string `db:"pincode" json:"pincode"`
	Landmark string `db:"landmark" json:"landmark,omitempty"`
}

// Booking reserves one service instance for one customer from one provider.
// The fee fields are a snapshot taken at creation and never recomputed.
type Booking struct {
	Base
	CustomerID    uuid.UUID     `db:"customer_id" json:"customer_id"`
	ProviderID    uuid.UUID     `db:"provider_id" json:"provider_id"`
	ServiceID     uuid.UUID     `db:"service_id" json:"service_id"`
	BookingDate   time.Time     `db:"booking_date" json:"booking_date"`
	TimeSlot      string        `db:"time_slot" json:"time_slot"`
	Status        BookingStatus `db:"status" json:"status"`
	PaymentStatus PaymentStatus `db:"payment_status" json:"payment_status"`
	TotalAmount   int64         `db:"total_amount" json:"total_amount"`
	ServiceFee    int64         `db:"service_fee" json:"service_fee"`
	PlatformFee   int64         `db:"platform_fee" json:"platform_fee"`
	Address       Address       `db:"address" json:"address"`
	CustomerNotes *string       `db:"customer_notes" json:"customer_notes,omitempty"`
	ProviderNotes *string       `db:"provider_notes" json:"provider_notes,omitempty"`
	CompletedAt   *time.Time    `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt   *time.Time    `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelReason  *string       `db:"cancel_reason" json:"cancel_reason,omitempty"`
}

// BookingDetail is a booking with its references resolved for display.
type BookingDetail struct {
	Booking
	CustomerName string `db:"customer_name" json:"customer_name"`
	ProviderName string `db:"provider_name" json:"provider_name"`
	ServiceName  string `db:"service_name" json:"service_name"`
}

type AddressRequest struct {
	Street   string `json:"street" binding:"required,max=200"`
	City     string `json:"city" binding:"required,max=100"`
	State    string `json:"state" binding:"required,max=100"`
	Pincode  string `json:"pincode" binding:"required,pincode"`
	Landmark string `json:"landmark" binding:"omitempty,max=200"`
}

type CreateBookingRequest struct {
	ServiceID     uuid.UUID      `json:"service_id" binding:"required"`
	BookingDate   time.Time      `json:"booking_date" binding:"required"`
	TimeSlot      string         `json:"time_slot" binding:"required,max=50"`
	Address       AddressRequest `json:"address" binding:"required"`
	CustomerNotes string         `json:"customer_notes" binding:"max=500"`
	PaymentMethod PaymentMethod  `json:"payment_method" binding:"required,oneof=razorpay wallet cod"`
}

type CancelBookingRequest struct {
	CancelReason string `json:"cancel_reason" binding:"max=200"`
}

type UpdateBookingStatusRequest struct {
	Status        BookingStatus `json:"status" binding:"required,oneof=confirmed in_progress completed cancelled"`
	ProviderNotes string        `json:"provider_notes" binding:"max=500"`
	CancelReason  string        `json:"cancel_reason" binding:"max=200"`
}

// BookingFilters enumerates the supported list filters. Filtering is a
// closed set, not an open field bag.
type BookingFilters struct {
	CustomerID uuid.UUID
	ProviderID uuid.UUID
	Statuses   []BookingStatus
	StartDate  *time.Time
	EndDate    *time.Time
	SortBy     string
	SortDesc   bool
	Pagination
}

// CreateBookingResult is the composite result of booking creation: the
// payment record and gateway order are present only for gateway methods.
type CreateBookingResult struct {
	Booking      *BookingDetail `json:"booking"`
	Payment      *Payment       `json:"payment,omitempty"`
	GatewayOrder *gateway.Order `json:"gateway_order,omitempty"`
}
