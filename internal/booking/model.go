package booking

import (
	"errors"
	"net/http"
	"time"

	"github.com/nekogravitycat/hospitality-booking-backend/internal/pkg/apperror"
)

var (
	ErrNotFound              = apperror.New(http.StatusNotFound, "booking not found")
	ErrResourceNotFound      = apperror.New(http.StatusNotFound, "resource not found")
	ErrForbidden             = apperror.New(http.StatusForbidden, "permission denied")
	ErrInvalidInput          = apperror.New(http.StatusBadRequest, "invalid input parameters")
	ErrInvalidTimeRange      = apperror.New(http.StatusBadRequest, "start time must be before end time")
	ErrStartTimePast         = apperror.New(http.StatusBadRequest, "cannot book a time in the past")
	ErrResourceUnavailable   = apperror.New(http.StatusBadRequest, "resource is not accepting bookings")
	ErrInvalidTransition     = apperror.New(http.StatusUnprocessableEntity, "booking cannot move to the requested state")
	ErrCapacityExceeded      = apperror.NewKind(apperror.KindCapacityExceeded, http.StatusUnprocessableEntity, "party size exceeds resource capacity")
	ErrOutsideOperatingHours = apperror.NewKind(apperror.KindOutsideOperatingHours, http.StatusUnprocessableEntity, "requested time is outside operating hours")
	ErrSlotUnavailable       = apperror.NewKind(apperror.KindSlotUnavailable, http.StatusConflict, "requested time is already booked")
	ErrAlreadyCancelled      = apperror.NewKind(apperror.KindAlreadyCancelled, http.StatusConflict, "booking is already cancelled")
	ErrConflict              = apperror.New(http.StatusConflict, "booking is being modified concurrently, please retry")
	ErrPaymentFailed         = apperror.New(http.StatusInternalServerError, "payment could not be initiated")
)

// errStatusMismatch reports that a guarded write found the row in a different status.
var errStatusMismatch = errors.New("booking status changed")

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Booking is a reservation of one resource. Exactly one of UserID and Guest is set.
type Booking struct {
	ID         string
	ResourceID string
	UserID     string
	Guest      *GuestContact
	// bcrypt hash of the access token handed to a guest at creation.
	GuestTokenHash string

	StartTime time.Time
	EndTime   time.Time
	SlotDate  string // YYYY-MM-DD, slot-style bookings only
	SlotLabel string // HH:MM, slot-style bookings only

	PartySize     int
	TotalAmount   int64
	Currency      string
	Status        Status
	PaymentStatus PaymentStatus
	PaymentRef    string // gateway order id
	PaymentTxnID  string // gateway payment id
	Notes         string

	CreatedAt time.Time
	UpdatedAt time.Time

	// GuestAccessToken is only populated on the value returned from Create.
	GuestAccessToken string
}

func (b *Booking) IsGuest() bool {
	return b.Guest != nil
}

func (b *Booking) IsSlot() bool {
	return b.SlotLabel != ""
}

// Window returns the interval the booking occupies.
func (b *Booking) Window() Window {
	return Window{Start: b.StartTime, End: b.EndTime, SlotDate: b.SlotDate, SlotLabel: b.SlotLabel}
}

// Window is a half-open interval [Start, End). For slot bookings SlotDate and SlotLabel
// name the slot; the interval still decides overlap.
type Window struct {
	Start     time.Time
	End       time.Time
	SlotDate  string
	SlotLabel string
}

func (w Window) IsSlot() bool {
	return w.SlotLabel != ""
}

// Overlaps applies the admission rule between two windows of the same resource.
// Slot and range bookings are compared alike, so a resource may switch between the two styles.
func (w Window) Overlaps(o Window) bool {
	return o.Start.Before(w.End) && o.End.After(w.Start)
}

func (w Window) Equal(o Window) bool {
	return w.Start.Equal(o.Start) && w.End.Equal(o.End) && w.SlotDate == o.SlotDate && w.SlotLabel == o.SlotLabel
}

// PaymentChange is applied atomically together with an optional status change.
type PaymentChange struct {
	Status        PaymentStatus
	Ref           string // kept when empty
	TxnID         string // kept when empty
	BookingStatus Status // kept when empty
}

type Filter struct {
	UserID     string
	ResourceID string
	Status     Status
	ActiveOnly bool       // exclude cancelled bookings
	From       *time.Time // bookings ending after this time
	To         *time.Time // bookings starting before this time
	Page       int
	PageSize   int
	SortOrder  string
}
