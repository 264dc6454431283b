package payment

import (
	"context"

	"github.com/google/uuid"
)

// OfflineGateway records charges without contacting any provider.
// Settlement happens when the host confirms the booking.
type OfflineGateway struct{}

func NewOfflineGateway() *OfflineGateway {
	return &OfflineGateway{}
}

func (g *OfflineGateway) Charge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	return &Charge{ExternalID: "offline_" + uuid.NewString(), Status: StatusPending}, nil
}

func (g *OfflineGateway) Refund(ctx context.Context, transactionID string, amount int64) (*RefundResult, error) {
	return &RefundResult{ExternalID: "offline_refund_" + uuid.NewString(), Status: StatusRefunded}, nil
}

func (g *OfflineGateway) ParseWebhook(body []byte, signature string) (*Event, error) {
	return nil, ErrWebhookDisabled
}
