package gateway

import (
	"context"
)

// Order is a payment order registered with the gateway.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// Client is the payment gateway capability the workflow engine depends on.
// Amounts are in minor currency units (paise for INR).
type Client interface {
	CreateOrder(ctx context.Context, amountMinorUnits int64, currency, receipt string) (*Order, error)
	VerifySignature(orderID, paymentID, signature string) bool
}
