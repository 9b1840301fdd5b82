package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/servease/marketplace-api/internal/model"
)

const paymentColumns = `
	id, booking_id, customer_id, provider_id, amount, currency, method, status,
	gateway_order_id, gateway_payment_id, gateway_signature, gateway_response,
	failure_reason, refund_id, refund_amount, created_at, updated_at`

func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	query := `
		INSERT INTO payments (
			id, booking_id, customer_id, provider_id, amount, currency, method,
			status, gateway_order_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	payment.ID = uuid.New()
	payment.CreatedAt = time.Now()
	payment.UpdatedAt = payment.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		payment.ID,
		payment.BookingID,
		payment.CustomerID,
		payment.ProviderID,
		payment.Amount,
		payment.Currency,
		payment.Method,
		payment.Status,
		payment.GatewayOrderID,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *paymentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	var payment model.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}

func (r *paymentRepository) GetCapturedByBooking(ctx context.Context, bookingID uuid.UUID) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE booking_id = $1 AND status = $2`

	var payment model.Payment
	if err := r.db.GetContext(ctx, &payment, query, bookingID, model.PaymentGatewayStatusCaptured); err != nil {
		return nil, fmt.Errorf("failed to get captured payment: %w", err)
	}
	return &payment, nil
}

func (r *paymentRepository) CaptureTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, gatewayPaymentID, gatewaySignature string) (bool, error) {
	query := `
		UPDATE payments
		SET status = $1, gateway_payment_id = $2, gateway_signature = $3, updated_at = $4
		WHERE id = $5 AND status = $6
	`
	result, err := tx.ExecContext(ctx, query,
		model.PaymentGatewayStatusCaptured,
		gatewayPaymentID,
		gatewaySignature,
		time.Now(),
		id,
		model.PaymentGatewayStatusCreated,
	)
	if err != nil {
		return false, fmt.Errorf("failed to capture payment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *paymentRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*model.Payment, error) {
	// The update only matches while status is still 'created': a failure
	// callback arriving after capture must not rewrite a captured payment.
	query := `
		UPDATE payments
		SET status = $1, failure_reason = $2, updated_at = $3
		WHERE id = $4 AND status = $5
		RETURNING ` + paymentColumns

	var payment model.Payment
	err := r.db.GetContext(ctx, &payment, query,
		model.PaymentGatewayStatusFailed,
		reason,
		time.Now(),
		id,
		model.PaymentGatewayStatusCreated,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mark payment failed: %w", err)
	}
	return &payment, nil
}

func (r *paymentRepository) MarkRefundedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, refundAmount int64, reason string) (bool, error) {
	query := `
		UPDATE payments
		SET status = $1, refund_amount = $2, failure_reason = $3, updated_at = $4
		WHERE id = $5 AND status = $6
	`
	result, err := tx.ExecContext(ctx, query,
		model.PaymentGatewayStatusRefunded,
		refundAmount,
		reason,
		time.Now(),
		id,
		model.PaymentGatewayStatusCaptured,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment refunded: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}
