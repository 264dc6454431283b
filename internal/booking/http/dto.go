package http

import (
	"time"

	"github.com/nekogravitycat/hospitality-booking-backend/internal/booking"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/pkg/request"
)

// GuestTokenHeader carries the access token a guest received when booking.
const GuestTokenHeader = "X-Guest-Token"

// ListBookingsRequest defines query parameters for listing bookings.
type ListBookingsRequest struct {
	request.ListParams
	Status string     `form:"status" binding:"omitempty,oneof=pending confirmed cancelled completed"`
	From   *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To     *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

// Validate performs custom validation for ListBookingsRequest.
func (r *ListBookingsRequest) Validate() error {
	if r.From != nil && r.To != nil && !r.From.Before(*r.To) {
		return booking.ErrInvalidTimeRange
	}
	return nil
}

func (r *ListBookingsRequest) Filter() booking.Filter {
	return booking.Filter{
		Status:    booking.Status(r.Status),
		From:      r.From,
		To:        r.To,
		Page:      r.Page,
		PageSize:  r.PageSize,
		SortOrder: r.SortOrder,
	}
}

type AvailabilityRequest struct {
	Date string `form:"date" binding:"required,datetime=2006-01-02"`
}

type GuestDTO struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type CreateBookingRequest struct {
	ResourceID string     `json:"resource_id" binding:"required,uuid"`
	StartTime  *time.Time `json:"start_time"`
	EndTime    *time.Time `json:"end_time"`
	SlotDate   string     `json:"slot_date"`
	SlotLabel  string     `json:"slot_label"`
	PartySize  int        `json:"party_size" binding:"required,min=1"`
	Guest      *GuestDTO  `json:"guest"`
	Notes      string     `json:"notes" binding:"max=1000"`
}

type UpdateBookingRequest struct {
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	SlotDate  *string    `json:"slot_date"`
	SlotLabel *string    `json:"slot_label"`
	PartySize *int       `json:"party_size" binding:"omitempty,min=1"`
	Notes     *string    `json:"notes" binding:"omitempty,max=1000"`
}

// Validate performs custom validation for UpdateBookingRequest.
func (r *UpdateBookingRequest) Validate() error {
	if r.StartTime != nil && r.EndTime != nil && !r.StartTime.Before(*r.EndTime) {
		return booking.ErrInvalidTimeRange
	}
	return nil
}

type BookingResponse struct {
	ID               string    `json:"id"`
	ResourceID       string    `json:"resource_id"`
	UserID           string    `json:"user_id,omitempty"`
	Guest            *GuestDTO `json:"guest,omitempty"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	SlotDate         string    `json:"slot_date,omitempty"`
	SlotLabel        string    `json:"slot_label,omitempty"`
	PartySize        int       `json:"party_size"`
	TotalAmount      int64     `json:"total_amount"`
	Currency         string    `json:"currency"`
	Status           string    `json:"status"`
	PaymentStatus    string    `json:"payment_status"`
	PaymentRef       string    `json:"payment_ref,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	GuestAccessToken string    `json:"guest_access_token,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func NewBookingResponse(b *booking.Booking) BookingResponse {
	resp := BookingResponse{
		ID:               b.ID,
		ResourceID:       b.ResourceID,
		UserID:           b.UserID,
		StartTime:        b.StartTime,
		EndTime:          b.EndTime,
		SlotDate:         b.SlotDate,
		SlotLabel:        b.SlotLabel,
		PartySize:        b.PartySize,
		TotalAmount:      b.TotalAmount,
		Currency:         b.Currency,
		Status:           string(b.Status),
		PaymentStatus:    string(b.PaymentStatus),
		PaymentRef:       b.PaymentRef,
		Notes:            b.Notes,
		GuestAccessToken: b.GuestAccessToken,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
	if b.Guest != nil {
		resp.Guest = &GuestDTO{Name: b.Guest.Name, Email: b.Guest.Email, Phone: b.Guest.Phone}
	}
	return resp
}

type TimeSlotResponse struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Label     string    `json:"label,omitempty"`
}

type AvailabilityResponse struct {
	ResourceID string             `json:"resource_id"`
	Date       string             `json:"date"`
	Free       []TimeSlotResponse `json:"free"`
}
