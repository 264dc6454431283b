package booking

import (
	"sort"
	"time"

	"github.com/nekogravitycat/hospitality-booking-backend/internal/resource"
)

// TimeSlot is a free interval. Label is set for slot-style resources.
type TimeSlot struct {
	StartTime time.Time
	EndTime   time.Time
	Label     string
}

func activeSorted(bookings []*Booking) []*Booking {
	active := make([]*Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.Status != StatusCancelled {
			active = append(active, b)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].StartTime.Before(active[j].StartTime)
	})
	return active
}

// CalculateAvailability returns the gaps left by bookings inside the open windows of date.
func CalculateAvailability(date time.Time, windows []resource.TimeWindow, bookings []*Booking) ([]TimeSlot, error) {
	active := activeSorted(bookings)

	var free []TimeSlot
	for _, w := range windows {
		open, close, err := w.On(date)
		if err != nil {
			return nil, err
		}

		cursor := open
		for _, b := range active {
			if !b.EndTime.After(cursor) || !b.StartTime.Before(close) {
				continue
			}
			if b.StartTime.After(cursor) {
				free = append(free, TimeSlot{StartTime: cursor, EndTime: b.StartTime})
			}
			cursor = b.EndTime
			if !cursor.Before(close) {
				break
			}
		}
		if cursor.Before(close) {
			free = append(free, TimeSlot{StartTime: cursor, EndTime: close})
		}
	}

	sort.Slice(free, func(i, j int) bool {
		return free[i].StartTime.Before(free[j].StartTime)
	})
	return free, nil
}

// CalculateSlotAvailability lists the slots of date that no active booking overlaps,
// stepping by the slot length from each opening. A slot must end by the window's close.
func CalculateSlotAvailability(date time.Time, windows []resource.TimeWindow, slot time.Duration, bookings []*Booking) ([]TimeSlot, error) {
	if slot <= 0 {
		return nil, nil
	}
	active := activeSorted(bookings)

	var free []TimeSlot
	for _, w := range windows {
		open, close, err := w.On(date)
		if err != nil {
			return nil, err
		}
		for t := open; !t.Add(slot).After(close); t = t.Add(slot) {
			candidate := Window{Start: t, End: t.Add(slot)}
			if overlapsAny(active, candidate) {
				continue
			}
			free = append(free, TimeSlot{StartTime: t, EndTime: candidate.End, Label: t.Format("15:04")})
		}
	}

	sort.Slice(free, func(i, j int) bool {
		return free[i].StartTime.Before(free[j].StartTime)
	})
	return free, nil
}

func overlapsAny(bookings []*Booking, w Window) bool {
	for _, b := range bookings {
		if b.Window().Overlaps(w) {
			return true
		}
	}
	return false
}
