package payment

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/servease/marketplace-api/internal/email"
	"github.com/servease/marketplace-api/internal/model"
	"github.com/servease/marketplace-api/internal/repository"
	apperrors "github.com/servease/marketplace-api/pkg/errors"
	"github.com/servease/marketplace-api/pkg/gateway"
	"github.com/servease/marketplace-api/pkg/messaging"
	"github.com/servease/marketplace-api/pkg/metrics"
)

// Service drives payment-triggered state transitions. Capture touches four
// entities (payment, booking, service counter, provider counters) and runs
// inside one transaction: either all four updates land or none do.
type Service struct {
	tx       repository.TxRunner
	payments repository.PaymentRepository
	bookings repository.BookingRepository
	services repository.ServiceRepository
	users    repository.UserRepository
	gateway  gateway.Client
	broker   messaging.Broker
	email    email.Service
	metrics  *metrics.Metrics
	logger   *zerolog.Logger
}

func NewService(
	tx repository.TxRunner,
	payments repository.PaymentRepository,
	bookings repository.BookingRepository,
	services repository.ServiceRepository,
	users repository.UserRepository,
	gw gateway.Client,
	broker messaging.Broker,
	mail email.Service,
	m *metrics.Metrics,
	logger *zerolog.Logger,
) *Service {
	return &Service{
		tx:       tx,
		payments: payments,
		bookings: bookings,
		services: services,
		users:    users,
		gateway:  gw,
		broker:   broker,
		email:    mail,
		metrics:  m,
		logger:   logger,
	}
}

// ConfirmPayment validates the gateway signature and applies the capture:
// payment -> captured, booking -> paid/confirmed, service bookings +1,
// provider earnings += amount and bookings +1. A replayed confirmation is
// rejected with Conflict before any counter moves: the capture update only
// matches a payment still in 'created'.
func (s *Service) ConfirmPayment(ctx context.Context, req *model.VerifyPaymentRequest) (*model.Payment, error) {
	if !s.gateway.VerifySignature(req.GatewayOrderID, req.GatewayPaymentID, req.GatewaySignature) {
		return nil, apperrors.BadRequest("invalid payment signature", nil)
	}

	payment, err := s.payments.Get(ctx, req.PaymentID)
	if err != nil {
		return nil, asNotFound("payment", err)
	}

	booking, err := s.bookings.Get(ctx, payment.BookingID)
	if err != nil {
		return nil, asNotFound("booking", err)
	}

	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		captured, err := s.payments.CaptureTx(ctx, tx, payment.ID, req.GatewayPaymentID, req.GatewaySignature)
		if err != nil {
			return err
		}
		if !captured {
			return apperrors.Conflict("payment already captured", nil)
		}

		ok, err := s.bookings.MarkPaidTx(ctx, tx, booking.ID)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.NotFound("booking", nil)
		}

		if err := s.services.AddBookingsTx(ctx, tx, booking.ServiceID, 1); err != nil {
			return err
		}

		return s.users.AddProviderStatsTx(ctx, tx, booking.ProviderID, payment.Amount, 1)
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		s.logger.Error().Err(err).
			Str("payment_id", payment.ID.String()).
			Str("booking_id", booking.ID.String()).
			Msg("payment capture transaction failed")
		return nil, apperrors.Internal(err)
	}

	s.metrics.PaymentsCaptured.Inc()

	updated, err := s.payments.Get(ctx, payment.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.publish(ctx, messaging.ChannelPaymentCaptured, updated)
	s.notifyCaptured(ctx, booking, updated)
	return updated, nil
}

// FailPayment records a verified failure callback: the payment is marked
// failed and the booking is cancelled with a fixed reason. Only a payment
// still awaiting capture can fail; a callback arriving after capture is
// rejected with Conflict so the captured state and its counters stand. No
// counters were incremented for an uncaptured payment, so no transaction is
// needed.
func (s *Service) FailPayment(ctx context.Context, paymentID uuid.UUID, reason string) (*model.Payment, error) {
	payment, err := s.payments.MarkFailed(ctx, paymentID, reason)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// The predicate missed: either the payment does not exist or it
			// already left the created state.
			if _, getErr := s.payments.Get(ctx, paymentID); getErr == nil {
				return nil, apperrors.Conflict("payment is no longer awaiting capture", nil)
			}
			return nil, apperrors.NotFound("payment", err)
		}
		return nil, apperrors.Internal(err)
	}

	if err := s.bookings.MarkPaymentFailed(ctx, payment.BookingID, time.Now()); err != nil {
		return nil, apperrors.Internal(err)
	}

	s.metrics.PaymentsFailed.Inc()
	s.logger.Info().
		Str("payment_id", payment.ID.String()).
		Str("booking_id", payment.BookingID.String()).
		Str("reason", reason).
		Msg("payment failed, booking cancelled")

	s.publish(ctx, messaging.ChannelPaymentFailed, payment)
	s.notifyCancelled(ctx, payment.CustomerID, payment.BookingID)
	return payment, nil
}

// ProcessRefund reverses a captured payment. Bookkeeping is symmetric with
// capture: the service booking counter and the provider earnings/bookings
// counters are all rolled back in the same transaction.
func (s *Service) ProcessRefund(ctx context.Context, bookingID uuid.UUID, refundAmount int64, reason string) (*model.Payment, error) {
	payment, err := s.payments.GetCapturedByBooking(ctx, bookingID)
	if err != nil {
		return nil, asNotFound("payment", err)
	}

	booking, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, asNotFound("booking", err)
	}

	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		refunded, err := s.payments.MarkRefundedTx(ctx, tx, payment.ID, refundAmount, reason)
		if err != nil {
			return err
		}
		if !refunded {
			return apperrors.Conflict("payment already refunded", nil)
		}

		if _, err := s.bookings.MarkRefundedTx(ctx, tx, booking.ID); err != nil {
			return err
		}

		if err := s.services.AddBookingsTx(ctx, tx, booking.ServiceID, -1); err != nil {
			return err
		}

		return s.users.AddProviderStatsTx(ctx, tx, booking.ProviderID, -refundAmount, -1)
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperrors.Internal(err)
	}

	s.metrics.PaymentsRefunded.Inc()

	updated, err := s.payments.Get(ctx, payment.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.publish(ctx, messaging.ChannelPaymentRefunded, updated)
	return updated, nil
}

func (s *Service) publish(ctx context.Context, channel string, payload interface{}) {
	if s.broker == nil {
		return
	}
	if err := s.broker.Publish(ctx, channel, payload); err != nil {
		s.logger.Warn().Err(err).Str("channel", channel).Msg("event publish failed")
	}
}

func (s *Service) notifyCaptured(ctx context.Context, booking *model.Booking, payment *model.Payment) {
	if s.email == nil {
		return
	}
	customer, err := s.users.Get(ctx, booking.CustomerID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("customer lookup for payment mail failed")
		return
	}
	if err := s.email.SendPaymentCaptured(ctx, customer.Email, payment); err != nil {
		s.logger.Warn().Err(err).Str("email", customer.Email).Msg("payment mail failed")
	}
	if err := s.email.SendBookingConfirmed(ctx, customer.Email, booking); err != nil {
		s.logger.Warn().Err(err).Str("email", customer.Email).Msg("confirmation mail failed")
	}
}

func (s *Service) notifyCancelled(ctx context.Context, customerID, bookingID uuid.UUID) {
	if s.email == nil {
		return
	}
	customer, err := s.users.Get(ctx, customerID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("customer lookup for cancellation mail failed")
		return
	}
	booking, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("booking lookup for cancellation mail failed")
		return
	}
	if err := s.email.SendBookingCancelled(ctx, customer.Email, booking); err != nil {
		s.logger.Warn().Err(err).Str("email", customer.Email).Msg("cancellation mail failed")
	}
}

func asNotFound(resource string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound(resource, err)
	}
	return apperrors.Internal(err)
}
