package booking

import "time"

// Event is the payload published for every booking lifecycle change.
type Event struct {
	BookingID     string        `json:"booking_id"`
	ResourceID    string        `json:"resource_id"`
	UserID        string        `json:"user_id,omitempty"`
	GuestName     string        `json:"guest_name,omitempty"`
	GuestEmail    string        `json:"guest_email,omitempty"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       time.Time     `json:"end_time"`
	SlotDate      string        `json:"slot_date,omitempty"`
	SlotLabel     string        `json:"slot_label,omitempty"`
	PartySize     int           `json:"party_size"`
	TotalAmount   int64         `json:"total_amount"`
	Currency      string        `json:"currency"`
	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

func NewEvent(b *Booking) Event {
	e := Event{
		BookingID:     b.ID,
		ResourceID:    b.ResourceID,
		UserID:        b.UserID,
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
		SlotDate:      b.SlotDate,
		SlotLabel:     b.SlotLabel,
		PartySize:     b.PartySize,
		TotalAmount:   b.TotalAmount,
		Currency:      b.Currency,
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		OccurredAt:    time.Now().UTC(),
	}
	if b.Guest != nil {
		e.GuestName = b.Guest.Name
		e.GuestEmail = b.Guest.Email
	}
	return e
}
