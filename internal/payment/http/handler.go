package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nekogravitycat/hospitality-booking-backend/internal/booking"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/payment"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/pkg/response"
)

// SignatureHeader carries the HMAC of the raw webhook body.
const SignatureHeader = "X-Razorpay-Signature"

// EventApplier settles bookings from gateway notifications.
type EventApplier interface {
	ApplyPaymentEvent(ctx context.Context, event payment.Event) (*booking.Booking, error)
}

type Handler struct {
	gateway  payment.Gateway
	bookings EventApplier
	log      logrus.FieldLogger
}

func NewHandler(gateway payment.Gateway, bookings EventApplier, log logrus.FieldLogger) *Handler {
	return &Handler{gateway: gateway, bookings: bookings, log: log}
}

type webhookResponse struct {
	Status    string `json:"status"`
	BookingID string `json:"booking_id,omitempty"`
}

// Webhook receives gateway notifications. Events that do not concern a known booking are
// acknowledged so the gateway stops redelivering them.
func (h *Handler) Webhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "could not read request body", err)
		return
	}

	event, err := h.gateway.ParseWebhook(body, c.GetHeader(SignatureHeader))
	if err != nil {
		if errors.Is(err, payment.ErrIgnoredEvent) {
			c.JSON(http.StatusOK, webhookResponse{Status: "ignored"})
			return
		}
		response.Error(c, err)
		return
	}

	b, err := h.bookings.ApplyPaymentEvent(c.Request.Context(), *event)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			h.log.WithField("order_id", event.ExternalID).Warn("payment event for unknown booking")
			c.JSON(http.StatusOK, webhookResponse{Status: "ignored"})
			return
		}
		response.Error(c, err)
		return
	}

	h.log.WithFields(logrus.Fields{
		"booking_id":     b.ID,
		"payment_status": b.PaymentStatus,
	}).Info("payment event applied")
	c.JSON(http.StatusOK, webhookResponse{Status: "processed", BookingID: b.ID})
}
