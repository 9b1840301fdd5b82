package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/servease/marketplace-api/internal/model"
)

const bookingColumns = `
	b.id, b.customer_id, b.provider_id, b.service_id, b.booking_date, b.time_slot,
	b.status, b.payment_status, b.total_amount, b.service_fee, b.platform_fee,
	b.address_street AS "address.street", b.address_city AS "address.city",
	b.address_state AS "address.state", b.address_pincode AS "address.pincode",
	b.address_landmark AS "address.landmark",
	b.customer_notes, b.provider_notes, b.completed_at, b.cancelled_at, b.cancel_reason,
	b.created_at, b.updated_at`

func (r *bookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	query := `
		INSERT INTO bookings (
			id, customer_id, provider_id, service_id, booking_date, time_slot,
			status, payment_status, total_amount, service_fee, platform_fee,
			address_street, address_city, address_state, address_pincode, address_landmark,
			customer_notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	booking.ID = uuid.New()
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = booking.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		booking.ID,
		booking.CustomerID,
		booking.ProviderID,
		booking.ServiceID,
		booking.BookingDate,
		booking.TimeSlot,
		booking.Status,
		booking.PaymentStatus,
		booking.TotalAmount,
		booking.ServiceFee,
		booking.PlatformFee,
		booking.Address.Street,
		booking.Address.City,
		booking.Address.State,
		booking.Address.Pincode,
		booking.Address.Landmark,
		booking.CustomerNotes,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *bookingRepository) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = $1`

	var booking model.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

func (r *bookingRepository) GetDetail(ctx context.Context, id uuid.UUID) (*model.BookingDetail, error) {
	query := `
		SELECT ` + bookingColumns + `,
			   c.name AS customer_name, p.name AS provider_name, s.name AS service_name
		FROM bookings b
		JOIN users c ON c.id = b.customer_id
		JOIN users p ON p.id = b.provider_id
		JOIN services s ON s.id = b.service_id
		WHERE b.id = $1
	`
	var detail model.BookingDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, fmt.Errorf("failed to get booking detail: %w", err)
	}
	return &detail, nil
}

var bookingSortColumns = map[string]string{
	"created_at":   "b.created_at",
	"booking_date": "b.booking_date",
	"total_amount": "b.total_amount",
}

func (r *bookingRepository) List(ctx context.Context, filters *model.BookingFilters) ([]*model.BookingDetail, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	argCount := 1

	if filters.CustomerID != uuid.Nil {
		where = append(where, fmt.Sprintf("b.customer_id = $%d", argCount))
		args = append(args, filters.CustomerID)
		argCount++
	}
	if filters.ProviderID != uuid.Nil {
		where = append(where, fmt.Sprintf("b.provider_id = $%d", argCount))
		args = append(args, filters.ProviderID)
		argCount++
	}
	if len(filters.Statuses) > 0 {
		statuses := make([]string, len(filters.Statuses))
		for i, s := range filters.Statuses {
			statuses[i] = string(s)
		}
		where = append(where, fmt.Sprintf("b.status = ANY($%d)", argCount))
		args = append(args, pq.Array(statuses))
		argCount++
	}
	if filters.StartDate != nil {
		where = append(where, fmt.Sprintf("b.booking_date >= $%d", argCount))
		args = append(args, *filters.StartDate)
		argCount++
	}
	if filters.EndDate != nil {
		where = append(where, fmt.Sprintf("b.booking_date <= $%d", argCount))
		args = append(args, *filters.EndDate)
		argCount++
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM bookings b WHERE ` + whereClause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	orderBy, ok := bookingSortColumns[filters.SortBy]
	if !ok {
		orderBy = "b.created_at"
	}
	direction := "ASC"
	if filters.SortDesc {
		direction = "DESC"
	}

	filters.Normalize()
	query := fmt.Sprintf(`
		SELECT `+bookingColumns+`,
			   c.name AS customer_name, p.name AS provider_name, s.name AS service_name
		FROM bookings b
		JOIN users c ON c.id = b.customer_id
		JOIN users p ON p.id = b.provider_id
		JOIN services s ON s.id = b.service_id
		WHERE %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d`, whereClause, orderBy, direction, argCount, argCount+1)
	args = append(args, filters.PageSize, filters.Offset())

	var bookings []*model.BookingDetail
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, total, nil
}

func (r *bookingRepository) CancelIfActive(ctx context.Context, id, customerID uuid.UUID, reason string, at time.Time) (bool, error) {
	query := `
		UPDATE bookings
		SET status = $1, cancelled_at = $2, cancel_reason = $3, updated_at = $2
		WHERE id = $4 AND customer_id = $5 AND status IN ($6, $7)
	`
	result, err := r.db.ExecContext(ctx, query,
		model.BookingStatusCancelled,
		at,
		reason,
		id,
		customerID,
		model.BookingStatusPending,
		model.BookingStatusConfirmed,
	)
	if err != nil {
		return false, fmt.Errorf("failed to cancel booking: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *bookingRepository) UpdateProviderStatus(ctx context.Context, id, providerID uuid.UUID, status model.BookingStatus, providerNotes, cancelReason string, at time.Time) (bool, error) {
	set := []string{"status = $1", "updated_at = $2"}
	args := []interface{}{status, at}
	argCount := 3

	if providerNotes != "" {
		set = append(set, fmt.Sprintf("provider_notes = $%d", argCount))
		args = append(args, providerNotes)
		argCount++
	}

	switch status {
	case model.BookingStatusCompleted:
		set = append(set, fmt.Sprintf("completed_at = $%d", argCount))
		args = append(args, at)
		argCount++
	case model.BookingStatusCancelled:
		set = append(set, fmt.Sprintf("cancelled_at = $%d", argCount))
		args = append(args, at)
		argCount++
		if cancelReason != "" {
			set = append(set, fmt.Sprintf("cancel_reason = $%d", argCount))
			args = append(args, cancelReason)
			argCount++
		}
	}

	query := fmt.Sprintf(`
		UPDATE bookings SET %s
		WHERE id = $%d AND provider_id = $%d AND status NOT IN ($%d, $%d, $%d)`,
		strings.Join(set, ", "), argCount, argCount+1, argCount+2, argCount+3, argCount+4)
	args = append(args, id, providerID,
		model.BookingStatusCompleted, model.BookingStatusCancelled, model.BookingStatusRefunded)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update booking status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *bookingRepository) MarkPaidTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (bool, error) {
	query := `
		UPDATE bookings
		SET payment_status = $1, status = $2, updated_at = $3
		WHERE id = $4
	`
	result, err := tx.ExecContext(ctx, query,
		model.PaymentStatusPaid,
		model.BookingStatusConfirmed,
		time.Now(),
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark booking paid: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *bookingRepository) MarkPaymentFailed(ctx context.Context, id uuid.UUID, at time.Time) error {
	// Only an unpaid pending booking can be cancelled by a payment failure;
	// a booking already paid or moved on by a concurrent transition is left
	// alone.
	query := `
		UPDATE bookings
		SET payment_status = $1, status = $2, cancelled_at = $3, cancel_reason = $4, updated_at = $3
		WHERE id = $5 AND status = $6 AND payment_status = $7
	`
	_, err := r.db.ExecContext(ctx, query,
		model.PaymentStatusFailed,
		model.BookingStatusCancelled,
		at,
		model.CancelReasonPaymentFailed,
		id,
		model.BookingStatusPending,
		model.PaymentStatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to mark booking payment failed: %w", err)
	}
	return nil
}

func (r *bookingRepository) MarkRefundedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (bool, error) {
	query := `
		UPDATE bookings
		SET payment_status = $1, status = $2, updated_at = $3
		WHERE id = $4
	`
	result, err := tx.ExecContext(ctx, query,
		model.PaymentStatusRefunded,
		model.BookingStatusRefunded,
		time.Now(),
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark booking refunded: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}
