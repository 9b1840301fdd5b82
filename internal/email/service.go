package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/servease/marketplace-api/internal/config"
	"github.com/servease/marketplace-api/internal/model"
)

// Service sends customer-facing booking mail. All sends are best-effort;
// callers log failures and continue.
type Service interface {
	SendBookingConfirmed(ctx context.Context, to string, booking *model.Booking) error
	SendBookingCancelled(ctx context.Context, to string, booking *model.Booking) error
	SendPaymentCaptured(ctx context.Context, to string, payment *model.Payment) error
}

type smtpService struct {
	dialer *gomail.Dialer
	from   string
}

func NewService(cfg config.EmailConfig) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpService) SendBookingConfirmed(ctx context.Context, to string, booking *model.Booking) error {
	body := fmt.Sprintf(
		"Your booking for %s (%s) is confirmed.\nTotal paid: %d",
		booking.BookingDate.Format("2006-01-02"), booking.TimeSlot, booking.TotalAmount,
	)
	return s.send(to, "Booking confirmed", body)
}

func (s *smtpService) SendBookingCancelled(ctx context.Context, to string, booking *model.Booking) error {
	reason := ""
	if booking.CancelReason != nil {
		reason = *booking.CancelReason
	}
	body := fmt.Sprintf(
		"Your booking for %s (%s) was cancelled.\nReason: %s",
		booking.BookingDate.Format("2006-01-02"), booking.TimeSlot, reason,
	)
	return s.send(to, "Booking cancelled", body)
}

func (s *smtpService) SendPaymentCaptured(ctx context.Context, to string, payment *model.Payment) error {
	body := fmt.Sprintf("We received your payment of %d %s.", payment.Amount, payment.Currency)
	return s.send(to, "Payment received", body)
}

func (s *smtpService) send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
