package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/servease/marketplace-api/internal/model"
)

// TxRunner executes a function inside a database transaction. The handle is
// passed explicitly to every sub-update; rollback on error or panic is a
// property of the runner, not caller discipline.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

// All repository interfaces in one file
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		// GetActive returns the user only if its account is active.
		GetActive(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		Update(ctx context.Context, user *model.User) error
		UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
		// AddProviderStatsTx adjusts the provider earnings/bookings counters
		// inside the given transaction. Deltas may be negative for refunds.
		AddProviderStatsTx(ctx context.Context, tx *sqlx.Tx, providerID uuid.UUID, earningsDelta int64, bookingsDelta int) error
	}

	CategoryRepository interface {
		Create(ctx context.Context, category *model.ServiceCategory) error
		Get(ctx context.Context, id uuid.UUID) (*model.ServiceCategory, error)
		List(ctx context.Context, activeOnly bool) ([]*model.ServiceCategory, error)
	}

	ServiceRepository interface {
		Create(ctx context.Context, service *model.Service) error
		Get(ctx context.Context, id uuid.UUID) (*model.Service, error)
		// GetActive returns the service only if it is currently bookable.
		GetActive(ctx context.Context, id uuid.UUID) (*model.Service, error)
		Update(ctx context.Context, service *model.Service) error
		List(ctx context.Context, filters *model.ServiceFilters) ([]*model.Service, int, error)
		// AddBookingsTx adjusts the service booking counter inside the given
		// transaction. Delta may be negative for refunds.
		AddBookingsTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, delta int) error
		UpdateRating(ctx context.Context, id uuid.UUID, avg float64, count int) error
	}

	BookingRepository interface {
		Create(ctx context.Context, booking *model.Booking) error
		Get(ctx context.Context, id uuid.UUID) (*model.Booking, error)
		GetDetail(ctx context.Context, id uuid.UUID) (*model.BookingDetail, error)
		List(ctx context.Context, filters *model.BookingFilters) ([]*model.BookingDetail, int, error)
		// CancelIfActive cancels the booking only while it still belongs to the
		// customer and is pending or confirmed; the status check is part of the
		// update predicate. Returns false when no row matched.
		CancelIfActive(ctx context.Context, id, customerID uuid.UUID, reason string, at time.Time) (bool, error)
		// UpdateProviderStatus applies a provider-initiated status change; the
		// ownership check is part of the update predicate.
		UpdateProviderStatus(ctx context.Context, id, providerID uuid.UUID, status model.BookingStatus, providerNotes, cancelReason string, at time.Time) (bool, error)
		// MarkPaidTx flips the booking to paid/confirmed inside the capture
		// transaction. Returns false when the booking does not exist.
		MarkPaidTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (bool, error)
		// MarkPaymentFailed cancels the booking after a payment failure. The
		// update only matches an unpaid pending booking; a booking already
		// paid or otherwise transitioned is left untouched.
		MarkPaymentFailed(ctx context.Context, id uuid.UUID, at time.Time) error
		MarkRefundedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (bool, error)
	}

	PaymentRepository interface {
		Create(ctx context.Context, payment *model.Payment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Payment, error)
		// GetCapturedByBooking returns the captured payment for a booking,
		// or sql.ErrNoRows wrapped when none exists.
		GetCapturedByBooking(ctx context.Context, bookingID uuid.UUID) (*model.Payment, error)
		// CaptureTx marks the payment captured inside the given transaction.
		// The update only matches while status is still 'created', which is
		// what makes a replayed confirmation harmless.
		CaptureTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, gatewayPaymentID, gatewaySignature string) (bool, error)
		// MarkFailed records a gateway failure. The update only matches while
		// status is still 'created'; a miss surfaces as sql.ErrNoRows so a
		// late callback can never rewrite a captured payment.
		MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*model.Payment, error)
		MarkRefundedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, refundAmount int64, reason string) (bool, error)
	}

	ReviewRepository interface {
		Create(ctx context.Context, review *model.Review) error
		GetByBooking(ctx context.Context, bookingID uuid.UUID) (*model.Review, error)
		ListByService(ctx context.Context, serviceID uuid.UUID, p model.Pagination) ([]*model.Review, int, error)
		AggregateByService(ctx context.Context, serviceID uuid.UUID) (avg float64, count int, err error)
	}
)
