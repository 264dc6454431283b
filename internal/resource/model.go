package resource

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/hospitality-booking-backend/internal/pkg/apperror"
)

var (
	ErrNotFound     = apperror.New(http.StatusNotFound, "resource not found")
	ErrForbidden    = apperror.New(http.StatusForbidden, "only the resource host can modify it")
	ErrInvalidInput = apperror.New(http.StatusBadRequest, "invalid resource")
	ErrEmptyName    = apperror.New(http.StatusBadRequest, "name cannot be empty")
)

type Kind string

const (
	KindRoom       Kind = "room"
	KindRestaurant Kind = "restaurant"
	KindService    Kind = "service"
)

var ValidKinds = []Kind{KindRoom, KindRestaurant, KindService}

// Capacity is either a flat head count or split into adults and children.
type Capacity struct {
	Total    int `json:"total,omitempty"`
	Adults   int `json:"adults,omitempty"`
	Children int `json:"children,omitempty"`
}

// Structured reports whether the adult/child split is in use.
func (c Capacity) Structured() bool {
	return c.Adults > 0 || c.Children > 0
}

// Max is the largest party the capacity admits.
func (c Capacity) Max() int {
	if c.Structured() {
		return c.Adults + c.Children
	}
	return c.Total
}

// Resource represents a bookable unit (a room, a restaurant, a generic service).
type Resource struct {
	ID       string
	HostID   string
	Name     string
	Kind     Kind
	Capacity Capacity
	// nil means always open.
	OpeningHours OpeningHours
	// SlotMinutes > 0 makes the resource slot-style: bookings are a date plus a start label.
	SlotMinutes  int
	PricePerUnit int64 // minor units; per hour for ranges, per slot otherwise
	Currency     string
	Available    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (r *Resource) MaxParty() int {
	return r.Capacity.Max()
}

func (r *Resource) AcceptsParty(n int) bool {
	return n > 0 && n <= r.MaxParty()
}

func (r *Resource) IsSlotted() bool {
	return r.SlotMinutes > 0
}

// SlotDuration is the fixed length of one slot booking.
func (r *Resource) SlotDuration() time.Duration {
	return time.Duration(r.SlotMinutes) * time.Minute
}

// Quote prices a booking of [start,end). Ranges are charged per started minute at the hourly rate.
func (r *Resource) Quote(start, end time.Time) int64 {
	if r.IsSlotted() {
		return r.PricePerUnit
	}
	if !end.After(start) {
		return 0
	}
	minutes := int64((end.Sub(start) + time.Minute - 1) / time.Minute)
	return (r.PricePerUnit*minutes + 59) / 60
}

// Filter defines parameters for listing resources.
type Filter struct {
	HostID        string
	Kind          Kind
	AvailableOnly bool
	Page          int
	PageSize      int
	SortOrder     string
}
