package messaging

import (
	"context"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Event channels published by the booking and payment workflows.
const (
	ChannelBookingCreated   = "booking.created"
	ChannelBookingCancelled = "booking.cancelled"
	ChannelBookingCompleted = "booking.completed"
	ChannelPaymentCaptured  = "payment.captured"
	ChannelPaymentFailed    = "payment.failed"
	ChannelPaymentRefunded  = "payment.refunded"
)

// Message is the envelope published on every channel.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
