// Package payment abstracts the third-party gateway that collects booking payments.
package payment

import (
	"context"
	"net/http"

	"github.com/nekogravitycat/hospitality-booking-backend/internal/pkg/apperror"
)

//go:generate mockgen -source=gateway.go -destination=mocks/mock_gateway.go -package=mocks

// Status is the settlement state reported by a gateway.
type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusFailed   Status = "failed"
	StatusRefunded Status = "refunded"
)

var (
	ErrInvalidSignature = apperror.New(http.StatusUnauthorized, "invalid webhook signature")
	ErrInvalidPayload   = apperror.New(http.StatusBadRequest, "invalid webhook payload")
	ErrWebhookDisabled  = apperror.New(http.StatusNotFound, "payment webhooks are not enabled")
	ErrIgnoredEvent     = apperror.New(http.StatusAccepted, "event ignored")
)

// ChargeRequest describes an amount to collect for one booking.
type ChargeRequest struct {
	Amount    int64 // minor units
	Currency  string
	Reference string // booking id, echoed back by the gateway as receipt
}

// Charge is the gateway-side handle for a collection attempt.
type Charge struct {
	ExternalID string
	Status     Status
}

// RefundResult is the outcome of a refund request.
type RefundResult struct {
	ExternalID string
	Status     Status
}

// Event is a settlement notification delivered by the gateway.
type Event struct {
	ExternalID    string // gateway order id, matches Booking.PaymentRef
	TransactionID string // gateway payment id
	Status        Status
}

// Gateway is the narrow contract the booking core relies on.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*Charge, error)
	Refund(ctx context.Context, transactionID string, amount int64) (*RefundResult, error)
	ParseWebhook(body []byte, signature string) (*Event, error)
}
