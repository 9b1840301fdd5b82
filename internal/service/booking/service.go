package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/servease/marketplace-api/internal/model"
	"github.com/servease/marketplace-api/internal/repository"
	apperrors "github.com/servease/marketplace-api/pkg/errors"
	"github.com/servease/marketplace-api/pkg/gateway"
	"github.com/servease/marketplace-api/pkg/messaging"
	"github.com/servease/marketplace-api/pkg/metrics"
)

// Business rules
const (
	// PlatformFeeRate is the marketplace cut, fixed at booking time.
	PlatformFeeRate = 0.10
	// MinCancelNotice is how far before the scheduled time a customer may
	// still cancel.
	MinCancelNotice = 2 * time.Hour

	currency = "INR"
)

// ServiceDirectory resolves bookable services. The catalog service backs it
// with a cached read, so booking creation does not hit the database for every
// lookup of a popular service.
type ServiceDirectory interface {
	GetActiveService(ctx context.Context, id uuid.UUID) (*model.Service, error)
}

type Service struct {
	bookings  repository.BookingRepository
	payments  repository.PaymentRepository
	directory ServiceDirectory
	users     repository.UserRepository
	gateway   gateway.Client
	broker    messaging.Broker
	metrics   *metrics.Metrics
	logger    *zerolog.Logger
}

func NewService(
	bookings repository.BookingRepository,
	payments repository.PaymentRepository,
	directory ServiceDirectory,
	users repository.UserRepository,
	gw gateway.Client,
	broker messaging.Broker,
	m *metrics.Metrics,
	logger *zerolog.Logger,
) *Service {
	return &Service{
		bookings:  bookings,
		payments:  payments,
		directory: directory,
		users:     users,
		gateway:   gw,
		broker:    broker,
		metrics:   m,
		logger:    logger,
	}
}

// PlatformFee computes the marketplace cut: 10% of the service fee,
// rounded half-up to the nearest whole currency unit.
func PlatformFee(serviceFee int64) int64 {
	return int64(math.Round(float64(serviceFee) * PlatformFeeRate))
}

// CreateBooking persists a booking with an immutable fee snapshot. For
// gateway payment methods it also registers a gateway order and creates the
// payment record. A gateway failure after the booking is persisted surfaces
// as BadRequest while the booking survives: payment can be retried against
// the existing booking instead of creating a duplicate.
func (s *Service) CreateBooking(ctx context.Context, customerID uuid.UUID, req *model.CreateBookingRequest) (*model.CreateBookingResult, error) {
	svc, err := s.directory.GetActiveService(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}

	if _, err := s.users.GetActive(ctx, customerID); err != nil {
		return nil, asNotFound("customer", err)
	}

	serviceFee := svc.Price
	platformFee := PlatformFee(serviceFee)
	totalAmount := serviceFee + platformFee

	booking := &model.Booking{
		CustomerID:    customerID,
		ProviderID:    svc.ProviderID,
		ServiceID:     svc.ID,
		BookingDate:   req.BookingDate,
		TimeSlot:      req.TimeSlot,
		Status:        model.BookingStatusPending,
		PaymentStatus: model.PaymentStatusPending,
		TotalAmount:   totalAmount,
		ServiceFee:    serviceFee,
		PlatformFee:   platformFee,
		Address: model.Address{
			Street:   req.Address.Street,
			City:     req.Address.City,
			State:    req.Address.State,
			Pincode:  req.Address.Pincode,
			Landmark: req.Address.Landmark,
		},
	}
	if req.CustomerNotes != "" {
		booking.CustomerNotes = &req.CustomerNotes
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, apperrors.Internal(err)
	}

	s.metrics.BookingsCreated.Inc()
	s.metrics.BookingAmount.Observe(float64(totalAmount))

	result := &model.CreateBookingResult{}

	if req.PaymentMethod.RequiresGateway() {
		order, err := s.createGatewayOrder(ctx, booking)
		if err != nil {
			// The booking stays on record so payment can be retried later.
			s.logger.Error().Err(err).
				Str("booking_id", booking.ID.String()).
				Msg("gateway order creation failed, booking kept pending")
			s.metrics.GatewayErrors.Inc()
			return nil, apperrors.BadRequest("failed to create payment order", err)
		}

		orderID := order.ID
		payment := &model.Payment{
			BookingID:      booking.ID,
			CustomerID:     booking.CustomerID,
			ProviderID:     booking.ProviderID,
			Amount:         booking.TotalAmount,
			Currency:       currency,
			Method:         req.PaymentMethod,
			Status:         model.PaymentGatewayStatusCreated,
			GatewayOrderID: &orderID,
		}
		if err := s.payments.Create(ctx, payment); err != nil {
			return nil, apperrors.Internal(err)
		}
		result.Payment = payment
		result.GatewayOrder = order
	}

	detail, err := s.bookings.GetDetail(ctx, booking.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	result.Booking = detail

	s.publish(ctx, messaging.ChannelBookingCreated, detail)
	return result, nil
}

func (s *Service) createGatewayOrder(ctx context.Context, booking *model.Booking) (*gateway.Order, error) {
	start := time.Now()
	defer func() {
		s.metrics.GatewayLatency.WithLabelValues("create_order").Observe(time.Since(start).Seconds())
	}()

	// Gateway receipts are capped at 40 characters.
	id := booking.ID.String()
	receipt := fmt.Sprintf("bk_%s_%d", id[len(id)-8:], time.Now().Unix()%100000000)

	// The gateway expects amounts in minor units.
	return s.gateway.CreateOrder(ctx, booking.TotalAmount*100, currency, receipt)
}

func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*model.BookingDetail, error) {
	detail, err := s.bookings.GetDetail(ctx, id)
	if err != nil {
		return nil, asNotFound("booking", err)
	}
	return detail, nil
}

func (s *Service) ListBookings(ctx context.Context, filters *model.BookingFilters) ([]*model.BookingDetail, int, error) {
	bookings, total, err := s.bookings.List(ctx, filters)
	if err != nil {
		return nil, 0, apperrors.Internal(err)
	}
	return bookings, total, nil
}

// CancelBooking is the customer-initiated cancellation. It succeeds only
// while the booking is pending or confirmed and the scheduled time is at
// least MinCancelNotice away. The status check is repeated inside the update
// predicate so a concurrent transition cannot be overwritten.
func (s *Service) CancelBooking(ctx context.Context, customerID, bookingID uuid.UUID, reason string) (*model.Booking, error) {
	booking, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, asNotFound("booking", err)
	}

	if booking.CustomerID != customerID ||
		(booking.Status != model.BookingStatusPending && booking.Status != model.BookingStatusConfirmed) {
		return nil, apperrors.NotFound("booking", nil)
	}

	if time.Until(booking.BookingDate) < MinCancelNotice {
		return nil, apperrors.BadRequest("cannot cancel booking less than 2 hours before the scheduled time", nil)
	}

	ok, err := s.bookings.CancelIfActive(ctx, bookingID, customerID, reason, time.Now())
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if !ok {
		// Status moved on between the read and the update.
		return nil, apperrors.NotFound("booking", nil)
	}

	s.metrics.BookingsCancelled.WithLabelValues("customer").Inc()

	cancelled, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.publish(ctx, messaging.ChannelBookingCancelled, cancelled)
	return cancelled, nil
}

// UpdateBookingStatus is the provider-initiated transition. Completion only
// stamps completedAt: the service booking counter is owned by payment
// capture, so a completion never double-counts.
func (s *Service) UpdateBookingStatus(ctx context.Context, providerID, bookingID uuid.UUID, req *model.UpdateBookingStatusRequest) (*model.BookingDetail, error) {
	ok, err := s.bookings.UpdateProviderStatus(ctx, bookingID, providerID, req.Status, req.ProviderNotes, req.CancelReason, time.Now())
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if !ok {
		return nil, apperrors.NotFound("booking", nil)
	}

	detail, err := s.bookings.GetDetail(ctx, bookingID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	switch req.Status {
	case model.BookingStatusCompleted:
		s.publish(ctx, messaging.ChannelBookingCompleted, detail)
	case model.BookingStatusCancelled:
		s.metrics.BookingsCancelled.WithLabelValues("provider").Inc()
		s.publish(ctx, messaging.ChannelBookingCancelled, detail)
	}

	return detail, nil
}

func (s *Service) publish(ctx context.Context, channel string, payload interface{}) {
	if s.broker == nil {
		return
	}
	if err := s.broker.Publish(ctx, channel, payload); err != nil {
		s.logger.Warn().Err(err).Str("channel", channel).Msg("event publish failed")
	}
}

func asNotFound(resource string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound(resource, err)
	}
	return apperrors.Internal(err)
}
