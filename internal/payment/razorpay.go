package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

// RazorpayGateway collects payments through Razorpay orders.
type RazorpayGateway struct {
	client        *razorpay.Client
	webhookSecret string
}

// NewRazorpayGateway initializes the Razorpay SDK client with the given credentials.
func NewRazorpayGateway(keyID, keySecret, webhookSecret string) *RazorpayGateway {
	return &RazorpayGateway{
		client:        razorpay.NewClient(keyID, keySecret),
		webhookSecret: webhookSecret,
	}
}

// Charge creates an order; the guest completes payment client-side and the outcome arrives by webhook.
func (g *RazorpayGateway) Charge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	data := map[string]interface{}{
		"amount":   req.Amount,
		"currency": req.Currency,
		"receipt":  req.Reference,
		"notes": map[string]interface{}{
			"booking_id": req.Reference,
		},
	}

	order, err := g.client.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create razorpay order: %w", err)
	}

	id, _ := order["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("razorpay order response missing id")
	}
	return &Charge{ExternalID: id, Status: StatusPending}, nil
}

func (g *RazorpayGateway) Refund(ctx context.Context, transactionID string, amount int64) (*RefundResult, error) {
	refund, err := g.client.Payment.Refund(transactionID, int(amount), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to refund razorpay payment %s: %w", transactionID, err)
	}

	id, _ := refund["id"].(string)
	return &RefundResult{ExternalID: id, Status: StatusRefunded}, nil
}

type razorpayWebhook struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// ParseWebhook verifies the X-Razorpay-Signature header and maps the event to a settlement status.
func (g *RazorpayGateway) ParseWebhook(body []byte, signature string) (*Event, error) {
	if signature == "" || !utils.VerifyWebhookSignature(string(body), signature, g.webhookSecret) {
		return nil, ErrInvalidSignature
	}
	return parseRazorpayEvent(body)
}

func parseRazorpayEvent(body []byte) (*Event, error) {
	var hook razorpayWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, ErrInvalidPayload
	}

	var status Status
	switch hook.Event {
	case "payment.captured", "order.paid":
		status = StatusPaid
	case "payment.failed":
		status = StatusFailed
	case "refund.processed":
		status = StatusRefunded
	default:
		return nil, ErrIgnoredEvent
	}

	entity := hook.Payload.Payment.Entity
	if entity.OrderID == "" {
		return nil, ErrInvalidPayload
	}
	return &Event{ExternalID: entity.OrderID, TransactionID: entity.ID, Status: status}, nil
}
