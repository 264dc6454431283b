// Package events publishes booking lifecycle notifications to downstream consumers.
package events

import "context"

//go:generate mockgen -source=events.go -destination=mocks/mock_publisher.go -package=mocks

// Routing keys.
const (
	BookingCreated   = "booking.created"
	BookingUpdated   = "booking.updated"
	BookingCancelled = "booking.cancelled"
	BookingConfirmed = "booking.confirmed"
	BookingRefunded  = "booking.refunded"
	BookingPayment   = "booking.payment"
)

// Publisher sends a JSON-encodable payload under a routing key.
type Publisher interface {
	Publish(ctx context.Context, key string, payload any) error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }
