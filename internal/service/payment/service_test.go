package payment

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servease/marketplace-api/internal/model"
	apperrors "github.com/servease/marketplace-api/pkg/errors"
	"github.com/servease/marketplace-api/pkg/gateway"
	"github.com/servease/marketplace-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("test", "payment")

// fakeTxRunner mimics real transaction semantics: when the callback fails,
// every repo is restored to its state from before the callback ran.
type fakeTxRunner struct {
	payments *fakePaymentRepo
	bookings *fakeBookingRepo
	services *fakeServiceRepo
	users    *fakeUserRepo
}

func (r fakeTxRunner) WithTx(_ context.Context, fn func(tx *sqlx.Tx) error) error {
	payments := cloneMap(r.payments.payments)
	bookings := cloneMap(r.bookings.bookings)
	services := cloneMap(r.services.services)
	users := cloneMap(r.users.users)

	if err := fn(nil); err != nil {
		r.payments.payments = payments
		r.bookings.bookings = bookings
		r.services.services = services
		r.users.users = users
		return err
	}
	return nil
}

func cloneMap[T any](src map[uuid.UUID]*T) map[uuid.UUID]*T {
	dst := make(map[uuid.UUID]*T, len(src))
	for id, v := range src {
		copy := *v
		dst[id] = &copy
	}
	return dst
}

type fakePaymentRepo struct {
	payments map[uuid.UUID]*model.Payment
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: make(map[uuid.UUID]*model.Payment)}
}

func (r *fakePaymentRepo) Create(_ context.Context, p *model.Payment) error {
	p.ID = uuid.New()
	r.payments[p.ID] = p
	return nil
}

func (r *fakePaymentRepo) Get(_ context.Context, id uuid.UUID) (*model.Payment, error) {
	p, ok := r.payments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *p
	return &copy, nil
}

func (r *fakePaymentRepo) GetCapturedByBooking(_ context.Context, bookingID uuid.UUID) (*model.Payment, error) {
	for _, p := range r.payments {
		if p.BookingID == bookingID && p.Status == model.PaymentGatewayStatusCaptured {
			copy := *p
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *fakePaymentRepo) CaptureTx(_ context.Context, _ *sqlx.Tx, id uuid.UUID, gatewayPaymentID, gatewaySignature string) (bool, error) {
	p, ok := r.payments[id]
	if !ok || p.Status != model.PaymentGatewayStatusCreated {
		return false, nil
	}
	p.Status = model.PaymentGatewayStatusCaptured
	p.GatewayPaymentID = &gatewayPaymentID
	p.GatewaySignature = &gatewaySignature
	return true, nil
}

func (r *fakePaymentRepo) MarkFailed(_ context.Context, id uuid.UUID, reason string) (*model.Payment, error) {
	p, ok := r.payments[id]
	if !ok || p.Status != model.PaymentGatewayStatusCreated {
		return nil, sql.ErrNoRows
	}
	p.Status = model.PaymentGatewayStatusFailed
	p.FailureReason = &reason
	copy := *p
	return &copy, nil
}

func (r *fakePaymentRepo) MarkRefundedTx(_ context.Context, _ *sqlx.Tx, id uuid.UUID, refundAmount int64, _ string) (bool, error) {
	p, ok := r.payments[id]
	if !ok || p.Status != model.PaymentGatewayStatusCaptured {
		return false, nil
	}
	p.Status = model.PaymentGatewayStatusRefunded
	p.RefundAmount = &refundAmount
	return true, nil
}

type fakeBookingRepo struct {
	bookings map[uuid.UUID]*model.Booking
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[uuid.UUID]*model.Booking)}
}

func (r *fakeBookingRepo) Create(_ context.Context, b *model.Booking) error {
	b.ID = uuid.New()
	r.bookings[b.ID] = b
	return nil
}

func (r *fakeBookingRepo) Get(_ context.Context, id uuid.UUID) (*model.Booking, error) {
	b, ok := r.bookings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *b
	return &copy, nil
}

func (r *fakeBookingRepo) GetDetail(ctx context.Context, id uuid.UUID) (*model.BookingDetail, error) {
	b, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &model.BookingDetail{Booking: *b}, nil
}

func (r *fakeBookingRepo) List(_ context.Context, _ *model.BookingFilters) ([]*model.BookingDetail, int, error) {
	return nil, 0, nil
}

func (r *fakeBookingRepo) CancelIfActive(_ context.Context, _, _ uuid.UUID, _ string, _ time.Time) (bool, error) {
	return false, nil
}

func (r *fakeBookingRepo) UpdateProviderStatus(_ context.Context, _, _ uuid.UUID, _ model.BookingStatus, _, _ string, _ time.Time) (bool, error) {
	return false, nil
}

func (r *fakeBookingRepo) MarkPaidTx(_ context.Context, _ *sqlx.Tx, id uuid.UUID) (bool, error) {
	b, ok := r.bookings[id]
	if !ok {
		return false, nil
	}
	b.PaymentStatus = model.PaymentStatusPaid
	b.Status = model.BookingStatusConfirmed
	return true, nil
}

func (r *fakeBookingRepo) MarkPaymentFailed(_ context.Context, id uuid.UUID, at time.Time) error {
	b, ok := r.bookings[id]
	if !ok || b.Status != model.BookingStatusPending || b.PaymentStatus != model.PaymentStatusPending {
		return nil
	}
	reason := model.CancelReasonPaymentFailed
	b.PaymentStatus = model.PaymentStatusFailed
	b.Status = model.BookingStatusCancelled
	b.CancelReason = &reason
	b.CancelledAt = &at
	return nil
}

func (r *fakeBookingRepo) MarkRefundedTx(_ context.Context, _ *sqlx.Tx, id uuid.UUID) (bool, error) {
	b, ok := r.bookings[id]
	if !ok {
		return false, nil
	}
	b.Status = model.BookingStatusRefunded
	b.PaymentStatus = model.PaymentStatusRefunded
	return true, nil
}

type fakeServiceRepo struct {
	services map[uuid.UUID]*model.Service
	failTx   bool
}

func newFakeServiceRepo() *fakeServiceRepo {
	return &fakeServiceRepo{services: make(map[uuid.UUID]*model.Service)}
}

func (r *fakeServiceRepo) Create(_ context.Context, s *model.Service) error {
	s.ID = uuid.New()
	r.services[s.ID] = s
	return nil
}

func (r *fakeServiceRepo) Get(_ context.Context, id uuid.UUID) (*model.Service, error) {
	s, ok := r.services[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return s, nil
}

func (r *fakeServiceRepo) GetActive(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	return r.Get(ctx, id)
}

func (r *fakeServiceRepo) Update(_ context.Context, _ *model.Service) error { return nil }

func (r *fakeServiceRepo) List(_ context.Context, _ *model.ServiceFilters) ([]*model.Service, int, error) {
	return nil, 0, nil
}

func (r *fakeServiceRepo) AddBookingsTx(_ context.Context, _ *sqlx.Tx, id uuid.UUID, delta int) error {
	if r.failTx {
		return errors.New("counter update failed")
	}
	r.services[id].TotalBookings += delta
	return nil
}

func (r *fakeServiceRepo) UpdateRating(_ context.Context, _ uuid.UUID, _ float64, _ int) error {
	return nil
}

type fakeUserRepo struct {
	users map[uuid.UUID]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*model.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	u.ID = uuid.New()
	r.users[u.ID] = u
	return nil
}

func (r *fakeUserRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (r *fakeUserRepo) GetActive(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.Get(ctx, id)
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, _ string) (*model.User, error) {
	return nil, sql.ErrNoRows
}

func (r *fakeUserRepo) Update(_ context.Context, _ *model.User) error { return nil }

func (r *fakeUserRepo) UpdateLastLogin(_ context.Context, _ uuid.UUID, _ time.Time) error {
	return nil
}

func (r *fakeUserRepo) AddProviderStatsTx(_ context.Context, _ *sqlx.Tx, providerID uuid.UUID, earningsDelta int64, bookingsDelta int) error {
	u := r.users[providerID]
	u.TotalEarnings += earningsDelta
	u.TotalBookings += bookingsDelta
	return nil
}

type fakeGatewayClient struct {
	valid bool
}

func (g *fakeGatewayClient) CreateOrder(_ context.Context, amount int64, currency, receipt string) (*gateway.Order, error) {
	return &gateway.Order{ID: "order_test123", Amount: amount, Currency: currency, Receipt: receipt, Status: "created"}, nil
}

func (g *fakeGatewayClient) VerifySignature(_, _, _ string) bool { return g.valid }

type env struct {
	svc      *Service
	payments *fakePaymentRepo
	bookings *fakeBookingRepo
	services *fakeServiceRepo
	users    *fakeUserRepo
	gateway  *fakeGatewayClient

	providerID uuid.UUID
	serviceID  uuid.UUID
	bookingID  uuid.UUID
	paymentID  uuid.UUID
}

// newEnv seeds a pending booking of 550 with a created payment awaiting capture.
func newEnv() *env {
	nop := zerolog.Nop()
	e := &env{
		payments: newFakePaymentRepo(),
		bookings: newFakeBookingRepo(),
		services: newFakeServiceRepo(),
		users:    newFakeUserRepo(),
		gateway:  &fakeGatewayClient{valid: true},
	}
	tx := fakeTxRunner{payments: e.payments, bookings: e.bookings, services: e.services, users: e.users}
	e.svc = NewService(tx, e.payments, e.bookings, e.services, e.users, e.gateway, nil, nil, testMetrics, &nop)

	ctx := context.Background()
	provider := &model.User{Role: model.UserRoleProvider, Active: true, Email: "pro@example.com"}
	e.users.Create(ctx, provider)
	customer := &model.User{Role: model.UserRoleCustomer, Active: true, Email: "cust@example.com"}
	e.users.Create(ctx, customer)
	e.providerID = provider.ID

	svc := &model.Service{ProviderID: provider.ID, Price: 500, Active: true}
	e.services.Create(ctx, svc)
	e.serviceID = svc.ID

	booking := &model.Booking{
		CustomerID:    customer.ID,
		ProviderID:    provider.ID,
		ServiceID:     svc.ID,
		Status:        model.BookingStatusPending,
		PaymentStatus: model.PaymentStatusPending,
		TotalAmount:   550,
		ServiceFee:    500,
		PlatformFee:   50,
	}
	e.bookings.Create(ctx, booking)
	e.bookingID = booking.ID

	orderID := "order_test123"
	payment := &model.Payment{
		BookingID:      booking.ID,
		CustomerID:     customer.ID,
		ProviderID:     provider.ID,
		Amount:         550,
		Currency:       "INR",
		Method:         model.PaymentMethodRazorpay,
		Status:         model.PaymentGatewayStatusCreated,
		GatewayOrderID: &orderID,
	}
	e.payments.Create(ctx, payment)
	e.paymentID = payment.ID
	return e
}

func verifyReq(e *env) *model.VerifyPaymentRequest {
	return &model.VerifyPaymentRequest{
		PaymentID:        e.paymentID,
		GatewayOrderID:   "order_test123",
		GatewayPaymentID: "pay_test456",
		GatewaySignature: "sig",
	}
}

func TestConfirmPaymentCaptures(t *testing.T) {
	e := newEnv()

	captured, err := e.svc.ConfirmPayment(context.Background(), verifyReq(e))
	require.NoError(t, err)
	assert.Equal(t, model.PaymentGatewayStatusCaptured, captured.Status)
	require.NotNil(t, captured.GatewayPaymentID)
	assert.Equal(t, "pay_test456", *captured.GatewayPaymentID)

	booking, _ := e.bookings.Get(context.Background(), e.bookingID)
	assert.Equal(t, model.BookingStatusConfirmed, booking.Status)
	assert.Equal(t, model.PaymentStatusPaid, booking.PaymentStatus)

	assert.Equal(t, 1, e.services.services[e.serviceID].TotalBookings)
	assert.Equal(t, int64(550), e.users.users[e.providerID].TotalEarnings)
	assert.Equal(t, 1, e.users.users[e.providerID].TotalBookings)
}

func TestConfirmPaymentBadSignature(t *testing.T) {
	e := newEnv()
	e.gateway.valid = false

	_, err := e.svc.ConfirmPayment(context.Background(), verifyReq(e))
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	// Nothing moved.
	payment, _ := e.payments.Get(context.Background(), e.paymentID)
	assert.Equal(t, model.PaymentGatewayStatusCreated, payment.Status)
	booking, _ := e.bookings.Get(context.Background(), e.bookingID)
	assert.Equal(t, model.BookingStatusPending, booking.Status)
	assert.Zero(t, e.services.services[e.serviceID].TotalBookings)
}

func TestConfirmPaymentDuplicate(t *testing.T) {
	e := newEnv()

	_, err := e.svc.ConfirmPayment(context.Background(), verifyReq(e))
	require.NoError(t, err)

	_, err = e.svc.ConfirmPayment(context.Background(), verifyReq(e))
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	// The replay incremented nothing a second time.
	assert.Equal(t, 1, e.services.services[e.serviceID].TotalBookings)
	assert.Equal(t, int64(550), e.users.users[e.providerID].TotalEarnings)
	assert.Equal(t, 1, e.users.users[e.providerID].TotalBookings)
}

func TestConfirmPaymentTxFailure(t *testing.T) {
	e := newEnv()
	e.services.failTx = true

	_, err := e.svc.ConfirmPayment(context.Background(), verifyReq(e))
	assert.True(t, apperrors.Is(err, apperrors.ErrInternal))

	// The rollback leaves every entity in its pre-capture state, including
	// the updates that ran before the failing one.
	payment, _ := e.payments.Get(context.Background(), e.paymentID)
	assert.Equal(t, model.PaymentGatewayStatusCreated, payment.Status)
	booking, _ := e.bookings.Get(context.Background(), e.bookingID)
	assert.Equal(t, model.BookingStatusPending, booking.Status)
	assert.Equal(t, model.PaymentStatusPending, booking.PaymentStatus)
	assert.Zero(t, e.services.services[e.serviceID].TotalBookings)
	assert.Zero(t, e.users.users[e.providerID].TotalEarnings)
	assert.Zero(t, e.users.users[e.providerID].TotalBookings)
}

func TestConfirmPaymentUnknownPayment(t *testing.T) {
	e := newEnv()
	req := verifyReq(e)
	req.PaymentID = uuid.New()

	_, err := e.svc.ConfirmPayment(context.Background(), req)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestFailPaymentCancelsBooking(t *testing.T) {
	e := newEnv()

	failed, err := e.svc.FailPayment(context.Background(), e.paymentID, "card declined")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentGatewayStatusFailed, failed.Status)
	require.NotNil(t, failed.FailureReason)
	assert.Equal(t, "card declined", *failed.FailureReason)

	booking, _ := e.bookings.Get(context.Background(), e.bookingID)
	assert.Equal(t, model.BookingStatusCancelled, booking.Status)
	assert.Equal(t, model.PaymentStatusFailed, booking.PaymentStatus)
	require.NotNil(t, booking.CancelReason)
	assert.Equal(t, model.CancelReasonPaymentFailed, *booking.CancelReason)
}

func TestFailPaymentAfterCaptureRejected(t *testing.T) {
	e := newEnv()

	_, err := e.svc.ConfirmPayment(context.Background(), verifyReq(e))
	require.NoError(t, err)

	_, err = e.svc.FailPayment(context.Background(), e.paymentID, "late failure callback")
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	// The captured state and its counters stand untouched.
	payment, _ := e.payments.Get(context.Background(), e.paymentID)
	assert.Equal(t, model.PaymentGatewayStatusCaptured, payment.Status)
	booking, _ := e.bookings.Get(context.Background(), e.bookingID)
	assert.Equal(t, model.BookingStatusConfirmed, booking.Status)
	assert.Equal(t, model.PaymentStatusPaid, booking.PaymentStatus)
	assert.Equal(t, 1, e.services.services[e.serviceID].TotalBookings)
	assert.Equal(t, int64(550), e.users.users[e.providerID].TotalEarnings)

	// The refund path still works after the rejected callback.
	refunded, err := e.svc.ProcessRefund(context.Background(), e.bookingID, 550, "cancelled after dispute")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentGatewayStatusRefunded, refunded.Status)
}

func TestProcessRefundReversesCapture(t *testing.T) {
	e := newEnv()

	_, err := e.svc.ConfirmPayment(context.Background(), verifyReq(e))
	require.NoError(t, err)

	refunded, err := e.svc.ProcessRefund(context.Background(), e.bookingID, 550, "service not rendered")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentGatewayStatusRefunded, refunded.Status)
	require.NotNil(t, refunded.RefundAmount)
	assert.Equal(t, int64(550), *refunded.RefundAmount)

	booking, _ := e.bookings.Get(context.Background(), e.bookingID)
	assert.Equal(t, model.BookingStatusRefunded, booking.Status)

	// Counters are rolled back symmetrically with capture.
	assert.Zero(t, e.services.services[e.serviceID].TotalBookings)
	assert.Zero(t, e.users.users[e.providerID].TotalEarnings)
	assert.Zero(t, e.users.users[e.providerID].TotalBookings)
}

func TestProcessRefundPartialAmount(t *testing.T) {
	e := newEnv()

	_, err := e.svc.ConfirmPayment(context.Background(), verifyReq(e))
	require.NoError(t, err)

	refunded, err := e.svc.ProcessRefund(context.Background(), e.bookingID, 200, "partial goodwill refund")
	require.NoError(t, err)
	assert.Equal(t, int64(200), *refunded.RefundAmount)

	// Earnings drop by the refunded amount only.
	assert.Equal(t, int64(350), e.users.users[e.providerID].TotalEarnings)
}

func TestProcessRefundRequiresCapture(t *testing.T) {
	e := newEnv()

	_, err := e.svc.ProcessRefund(context.Background(), e.bookingID, 550, "never captured")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
