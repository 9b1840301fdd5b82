package model

import (
	"github.com/google/uuid"
)

type PaymentMethod string

const (
	PaymentMethodRazorpay PaymentMethod = "razorpay"
	PaymentMethodWallet   PaymentMethod = "wallet"
	PaymentMethodCOD      PaymentMethod = "cod"
)

// RequiresGateway reports whether the method needs a gateway order up front.
func (m PaymentMethod) RequiresGateway() bool {
	return m == PaymentMethodRazorpay
}

type PaymentGatewayStatus string

const (
	PaymentGatewayStatusCreated    PaymentGatewayStatus = "created"
	PaymentGatewayStatusAuthorized PaymentGatewayStatus = "authorized"
	PaymentGatewayStatusCaptured   PaymentGatewayStatus = "captured"
	PaymentGatewayStatusRefunded   PaymentGatewayStatus = "refunded"
	PaymentGatewayStatusFailed     PaymentGatewayStatus = "failed"
)

// Payment is one attempt to collect money for exactly one booking. The
// customer and provider references are denormalized copies captured from the
// booking at creation.
type Payment struct {
	Base
	BookingID        uuid.UUID            `db:"booking_id" json:"booking_id"`
	CustomerID       uuid.UUID            `db:"customer_id" json:"customer_id"`
	ProviderID       uuid.UUID            `db:"provider_id" json:"provider_id"`
	Amount           int64                `db:"amount" json:"amount"`
	Currency         string               `db:"currency" json:"currency"`
	Method           PaymentMethod        `db:"method" json:"method"`
	Status           PaymentGatewayStatus `db:"status" json:"status"`
	GatewayOrderID   *string              `db:"gateway_order_id" json:"gateway_order_id,omitempty"`
	GatewayPaymentID *string              `db:"gateway_payment_id" json:"gateway_payment_id,omitempty"`
	GatewaySignature *string              `db:"gateway_signature" json:"-"`
	GatewayResponse  []byte               `db:"gateway_response" json:"-"`
	FailureReason    *string              `db:"failure_reason" json:"failure_reason,omitempty"`
	RefundID         *string              `db:"refund_id" json:"refund_id,omitempty"`
	RefundAmount     *int64               `db:"refund_amount" json:"refund_amount,omitempty"`
}

type VerifyPaymentRequest struct {
	PaymentID        uuid.UUID `json:"payment_id" binding:"required"`
	GatewayOrderID   string    `json:"gateway_order_id" binding:"required"`
	GatewayPaymentID string    `json:"gateway_payment_id" binding:"required"`
	GatewaySignature string    `json:"gateway_signature" binding:"required"`
}

type FailPaymentRequest struct {
	PaymentID uuid.UUID `json:"payment_id" binding:"required"`
	Reason    string    `json:"reason" binding:"required,max=200"`
}

type RefundRequest struct {
	Amount int64  `json:"amount" binding:"required,gt=0"`
	Reason string `json:"reason" binding:"required,max=200"`
}
