package booking

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu   sync.RWMutex
	rows map[string]Booking
	now  func() time.Time
}

// NewMemoryRepository returns a process-local Repository. Like the Postgres schema it
// refuses to store two overlapping non-cancelled bookings of one resource.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		rows: make(map[string]Booking),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func clone(b Booking) *Booking {
	if b.Guest != nil {
		g := *b.Guest
		b.Guest = &g
	}
	return &b
}

func (r *memoryRepository) overlapLocked(resourceID string, w Window, excludeID string) bool {
	for _, b := range r.rows {
		if b.ResourceID != resourceID || b.Status == StatusCancelled || b.ID == excludeID {
			continue
		}
		if b.Window().Overlaps(w) {
			return true
		}
	}
	return false
}

func (r *memoryRepository) Create(ctx context.Context, b *Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.overlapLocked(b.ResourceID, b.Window(), "") {
		return ErrSlotUnavailable
	}

	now := r.now()
	b.ID = uuid.NewString()
	b.CreatedAt = now
	b.UpdatedAt = now
	stored := *clone(*b)
	stored.GuestAccessToken = ""
	r.rows[b.ID] = stored
	return nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(b), nil
}

func (r *memoryRepository) GetByPaymentRef(ctx context.Context, ref string) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, b := range r.rows {
		if ref != "" && b.PaymentRef == ref {
			return clone(b), nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryRepository) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Booking
	for _, b := range r.rows {
		switch {
		case filter.UserID != "" && b.UserID != filter.UserID:
			continue
		case filter.ResourceID != "" && b.ResourceID != filter.ResourceID:
			continue
		case filter.Status != "" && b.Status != filter.Status:
			continue
		case filter.ActiveOnly && b.Status == StatusCancelled:
			continue
		case filter.From != nil && !b.EndTime.After(*filter.From):
			continue
		case filter.To != nil && !b.StartTime.Before(*filter.To):
			continue
		}
		matched = append(matched, clone(b))
	}

	sort.Slice(matched, func(i, j int) bool {
		if filter.SortOrder == "ASC" {
			return matched[i].StartTime.Before(matched[j].StartTime)
		}
		return matched[i].StartTime.After(matched[j].StartTime)
	})

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	start := (page - 1) * pageSize
	if start >= len(matched) {
		return nil, len(matched), nil
	}
	end := min(start+pageSize, len(matched))
	return matched[start:end], len(matched), nil
}

func (r *memoryRepository) HasOverlap(ctx context.Context, resourceID string, w Window, excludeBookingID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.overlapLocked(resourceID, w, excludeBookingID), nil
}

func (r *memoryRepository) Reschedule(ctx context.Context, b *Booking, from Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.rows[b.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Status != from {
		return errStatusMismatch
	}
	if r.overlapLocked(stored.ResourceID, b.Window(), b.ID) {
		return ErrSlotUnavailable
	}

	stored.StartTime = b.StartTime
	stored.EndTime = b.EndTime
	stored.SlotDate = b.SlotDate
	stored.SlotLabel = b.SlotLabel
	stored.PartySize = b.PartySize
	stored.TotalAmount = b.TotalAmount
	stored.Notes = b.Notes
	stored.UpdatedAt = r.now()
	r.rows[b.ID] = stored

	b.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *memoryRepository) TransitionStatus(ctx context.Context, id string, from []Status, to Status) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !slices.Contains(from, stored.Status) {
		return nil, errStatusMismatch
	}
	if stored.Status == StatusCancelled && to != StatusCancelled && r.overlapLocked(stored.ResourceID, stored.Window(), id) {
		return nil, ErrSlotUnavailable
	}

	stored.Status = to
	stored.UpdatedAt = r.now()
	r.rows[id] = stored
	return clone(stored), nil
}

func (r *memoryRepository) UpdatePayment(ctx context.Context, id string, from Status, change PaymentChange) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	if stored.Status != from {
		return nil, errStatusMismatch
	}

	stored.PaymentStatus = change.Status
	if change.Ref != "" {
		stored.PaymentRef = change.Ref
	}
	if change.TxnID != "" {
		stored.PaymentTxnID = change.TxnID
	}
	if change.BookingStatus != "" {
		stored.Status = change.BookingStatus
	}
	stored.UpdatedAt = r.now()
	r.rows[id] = stored
	return clone(stored), nil
}
