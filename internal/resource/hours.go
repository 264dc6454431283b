package resource

import (
	"fmt"
	"strings"
	"time"
)

const (
	minutesPerDay = 24 * 60
	closeOfDay    = "24:00"
)

// TimeWindow is one open period of a day in wall-clock HH:MM.
type TimeWindow struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// OpeningHours maps a lower-case weekday name ("monday") to its open windows.
// A day missing from a non-nil map is closed.
type OpeningHours map[string][]TimeWindow

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func dayKey(d time.Weekday) string {
	return strings.ToLower(d.String())
}

// parseClock converts HH:MM or HH:MM:SS into minutes after midnight.
// "24:00" is only meaningful as a closing time and yields 1440.
func parseClock(s string) (int, error) {
	if s == closeOfDay || s == closeOfDay+":00" {
		return minutesPerDay, nil
	}
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		t, err = time.Parse("15:04", s)
		if err != nil {
			return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
		}
	}
	return t.Hour()*60 + t.Minute(), nil
}

func (w TimeWindow) bounds() (open, close int, err error) {
	if open, err = parseClock(w.Open); err != nil {
		return 0, 0, err
	}
	if close, err = parseClock(w.Close); err != nil {
		return 0, 0, err
	}
	return open, close, nil
}

// Validate checks day names and that every window opens before it closes.
func (h OpeningHours) Validate() error {
	for day, windows := range h {
		if _, ok := weekdays[day]; !ok {
			return fmt.Errorf("unknown weekday %q", day)
		}
		for _, w := range windows {
			open, close, err := w.bounds()
			if err != nil {
				return fmt.Errorf("%s: %w", day, err)
			}
			if open >= minutesPerDay {
				return fmt.Errorf("%s: opening time cannot be 24:00", day)
			}
			if open >= close {
				return fmt.Errorf("%s: opening time %s must be before closing time %s", day, w.Open, w.Close)
			}
		}
	}
	return nil
}

// WindowsOn returns the open windows for a weekday. Always-open resources get the whole day.
func (h OpeningHours) WindowsOn(d time.Weekday) []TimeWindow {
	if h == nil {
		return []TimeWindow{{Open: "00:00", Close: closeOfDay}}
	}
	return h[dayKey(d)]
}

// Contains reports whether [start,end) lies inside one window on the weekday of start.
// Times are compared as naive wall clock in start's location; end may be the following midnight.
func (h OpeningHours) Contains(start, end time.Time) bool {
	if h == nil {
		return true
	}
	if !end.After(start) {
		return false
	}

	end = end.In(start.Location())
	from := clockMinutes(start)
	to := clockMinutes(end)

	sy, sm, sd := start.Date()
	ey, em, ed := end.Date()
	if sy != ey || sm != em || sd != ed {
		nextMidnight := time.Date(sy, sm, sd+1, 0, 0, 0, 0, start.Location())
		if !end.Equal(nextMidnight) {
			return false
		}
		to = minutesPerDay
	} else if end.Second() > 0 || end.Nanosecond() > 0 {
		to++ // a partial minute still occupies it
	}

	for _, w := range h.WindowsOn(start.Weekday()) {
		open, close, err := w.bounds()
		if err != nil {
			continue
		}
		if open <= from && to <= close {
			return true
		}
	}
	return false
}

// ContainsSlot reports whether label is one of the slots a window offers on date:
// it must sit on the window's grid (open plus a multiple of slot) and end by close.
func (h OpeningHours) ContainsSlot(date time.Time, label string, slot time.Duration) bool {
	at, err := parseClock(label)
	if err != nil || at >= minutesPerDay {
		return false
	}
	step := int(slot / time.Minute)
	if step <= 0 {
		return false
	}
	for _, w := range h.WindowsOn(date.Weekday()) {
		open, close, err := w.bounds()
		if err != nil {
			continue
		}
		if open <= at && at+step <= close && (at-open)%step == 0 {
			return true
		}
	}
	return false
}

// ParseLabel validates a slot label and returns it normalized to HH:MM.
func ParseLabel(label string) (string, error) {
	at, err := parseClock(label)
	if err != nil {
		return "", err
	}
	if at >= minutesPerDay {
		return "", fmt.Errorf("invalid slot label %q", label)
	}
	return fmt.Sprintf("%02d:%02d", at/60, at%60), nil
}

// SlotStart resolves a slot label on date (midnight in the resource's zone) to an instant.
func SlotStart(date time.Time, label string) (time.Time, error) {
	at, err := parseClock(label)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, at/60, at%60, 0, 0, date.Location()), nil
}

// On resolves the window against a calendar date. A 24:00 close lands on the next midnight.
func (w TimeWindow) On(date time.Time) (start, end time.Time, err error) {
	open, close, err := w.bounds()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	y, m, d := date.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, date.Location())
	return midnight.Add(time.Duration(open) * time.Minute), midnight.Add(time.Duration(close) * time.Minute), nil
}

func clockMinutes(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
