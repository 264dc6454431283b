package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nekogravitycat/hospitality-booking-backend/internal/auth"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/events"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/lock"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/payment"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/resource"
)

//go:generate mockgen -source=service.go -destination=mocks/mock_service.go -package=mocks

const dateLayout = "2006-01-02"

// guarded writes that lose a race with another status change are retried this many times.
const maxPaymentAttempts = 3

type CreateRequest struct {
	ResourceID string
	Requester  Requester
	// Range bookings.
	StartTime time.Time
	EndTime   time.Time
	// Slot bookings.
	SlotDate  string
	SlotLabel string

	PartySize int
	Notes     string
}

type UpdateRequest struct {
	StartTime *time.Time
	EndTime   *time.Time
	SlotDate  *string
	SlotLabel *string
	PartySize *int
	Notes     *string
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Booking, error)
	GetByID(ctx context.Context, id string, requester Requester) (*Booking, error)
	ListForResource(ctx context.Context, resourceID string, requester Requester, filter Filter) ([]*Booking, int, error)
	ListForRequester(ctx context.Context, requester Requester, filter Filter) ([]*Booking, int, error)
	Update(ctx context.Context, id string, req UpdateRequest, requester Requester) (*Booking, error)
	Cancel(ctx context.Context, id string, requester Requester) (*Booking, error)
	Confirm(ctx context.Context, id string, requester Requester) (*Booking, error)
	Refund(ctx context.Context, id string, requester Requester) (*Booking, error)
	ApplyPaymentEvent(ctx context.Context, event payment.Event) (*Booking, error)
	Availability(ctx context.Context, resourceID string, date string) ([]TimeSlot, error)
}

// ResourceReader is the catalog lookup the admission checks depend on.
type ResourceReader interface {
	GetByID(ctx context.Context, id string) (*resource.Resource, error)
}

// TokenHasher protects guest access tokens at rest.
type TokenHasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) error
}

type Option func(*service)

// WithClock overrides the time source used to reject bookings in the past.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithLocation sets the zone slot dates are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(s *service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithOfflineSettlement makes host confirmation also mark a pending payment as paid.
func WithOfflineSettlement() Option {
	return func(s *service) { s.settleOnConfirm = true }
}

type service struct {
	repo      Repository
	resources ResourceReader
	locker    lock.Locker
	gateway   payment.Gateway
	publisher events.Publisher
	hasher    TokenHasher

	now             func() time.Time
	loc             *time.Location
	settleOnConfirm bool
}

func NewService(repo Repository, resources ResourceReader, locker lock.Locker, gateway payment.Gateway, publisher events.Publisher, hasher TokenHasher, opts ...Option) Service {
	s := &service{
		repo:      repo,
		resources: resources,
		locker:    locker,
		gateway:   gateway,
		publisher: publisher,
		hasher:    hasher,
		now:       time.Now,
		loc:       time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) loadResource(ctx context.Context, id string) (*resource.Resource, error) {
	res, err := s.resources.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, resource.ErrNotFound) {
			return nil, ErrResourceNotFound
		}
		return nil, err
	}
	return res, nil
}

// resolveWindow turns either a range or a slot selection into the interval it occupies.
func (s *service) resolveWindow(res *resource.Resource, start, end time.Time, slotDate, slotLabel string) (Window, error) {
	if !res.IsSlotted() {
		if slotDate != "" || slotLabel != "" {
			return Window{}, apperror.Detail(ErrInvalidInput, "this resource is booked by time range, not by slot")
		}
		if start.IsZero() || end.IsZero() {
			return Window{}, apperror.Detail(ErrInvalidInput, "start_time and end_time are required")
		}
		if !end.After(start) {
			return Window{}, ErrInvalidTimeRange
		}
		return Window{Start: start, End: end}, nil
	}

	if !start.IsZero() || !end.IsZero() {
		return Window{}, apperror.Detail(ErrInvalidInput, "this resource is booked by slot_date and slot_label, not by time range")
	}
	if slotDate == "" || slotLabel == "" {
		return Window{}, apperror.Detail(ErrInvalidInput, "slot_date and slot_label are required")
	}
	date, err := time.ParseInLocation(dateLayout, slotDate, s.loc)
	if err != nil {
		return Window{}, apperror.Detail(ErrInvalidInput, "slot_date must be formatted as YYYY-MM-DD")
	}
	label, err := resource.ParseLabel(slotLabel)
	if err != nil {
		return Window{}, apperror.Detail(ErrInvalidInput, "slot_label must be formatted as HH:MM")
	}
	slotStart, err := resource.SlotStart(date, label)
	if err != nil {
		return Window{}, apperror.Detail(ErrInvalidInput, err.Error())
	}
	return Window{
		Start:     slotStart,
		End:       slotStart.Add(res.SlotDuration()),
		SlotDate:  date.Format(dateLayout),
		SlotLabel: label,
	}, nil
}

// admissible evaluates the catalog predicates for a candidate booking.
func (s *service) admissible(res *resource.Resource, w Window, partySize int) error {
	if w.Start.Before(s.now()) {
		return ErrStartTimePast
	}
	if !res.AcceptsParty(partySize) {
		return apperror.Detail(ErrCapacityExceeded, fmt.Sprintf("party size %d exceeds capacity %d", partySize, res.MaxParty()))
	}
	if w.IsSlot() {
		date, _ := time.ParseInLocation(dateLayout, w.SlotDate, s.loc)
		if !res.OpeningHours.ContainsSlot(date, w.SlotLabel, res.SlotDuration()) {
			return apperror.Detail(ErrOutsideOperatingHours, fmt.Sprintf("%s is not one of the slots offered on %s", w.SlotLabel, w.SlotDate))
		}
		return nil
	}
	if !res.OpeningHours.Contains(w.Start, w.End) {
		return ErrOutsideOperatingHours
	}
	return nil
}

// reserve runs write while holding the resource lock, after verifying w is free.
func (s *service) reserve(ctx context.Context, resourceID string, w Window, excludeID string, write func() error) error {
	release, err := s.locker.Acquire(ctx, "resource:"+resourceID)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return ErrConflict
		}
		return fmt.Errorf("acquire resource lock: %w", err)
	}
	defer release()

	overlap, err := s.repo.HasOverlap(ctx, resourceID, w, excludeID)
	if err != nil {
		return err
	}
	if overlap {
		return ErrSlotUnavailable
	}
	return write()
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*Booking, error) {
	if err := req.Requester.validateForCreate(); err != nil {
		return nil, err
	}
	if req.PartySize < 1 {
		return nil, apperror.Detail(ErrInvalidInput, "party_size must be a positive integer")
	}

	res, err := s.loadResource(ctx, req.ResourceID)
	if err != nil {
		return nil, err
	}

	w, err := s.resolveWindow(res, req.StartTime, req.EndTime, req.SlotDate, req.SlotLabel)
	if err != nil {
		return nil, err
	}
	if !res.Available {
		return nil, ErrResourceUnavailable
	}
	if err := s.admissible(res, w, req.PartySize); err != nil {
		return nil, err
	}

	b := &Booking{
		ResourceID:    res.ID,
		UserID:        req.Requester.UserID,
		Guest:         req.Requester.Guest,
		StartTime:     w.Start,
		EndTime:       w.End,
		SlotDate:      w.SlotDate,
		SlotLabel:     w.SlotLabel,
		PartySize:     req.PartySize,
		TotalAmount:   res.Quote(w.Start, w.End),
		Currency:      res.Currency,
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		Notes:         strings.TrimSpace(req.Notes),
	}

	var guestToken string
	if b.IsGuest() {
		guestToken = auth.NewOpaqueToken()
		if b.GuestTokenHash, err = s.hasher.Hash(guestToken); err != nil {
			return nil, fmt.Errorf("hash guest token: %w", err)
		}
	}

	if err := s.reserve(ctx, res.ID, w, "", func() error {
		return s.repo.Create(ctx, b)
	}); err != nil {
		return nil, err
	}

	b, err = s.charge(ctx, b)
	if err != nil {
		return nil, err
	}
	b.GuestAccessToken = guestToken

	s.publish(ctx, events.BookingCreated, NewEvent(b))
	return b, nil
}

// charge opens a payment with the gateway for a freshly inserted booking.
// A gateway failure cancels the booking so the slot is released.
// Free bookings never reach the gateway and are settled at once.
func (s *service) charge(ctx context.Context, b *Booking) (*Booking, error) {
	if b.TotalAmount <= 0 {
		return s.repo.UpdatePayment(ctx, b.ID, StatusPending, PaymentChange{
			Status:        PaymentPaid,
			BookingStatus: StatusConfirmed,
		})
	}

	ch, err := s.gateway.Charge(ctx, payment.ChargeRequest{
		Amount:    b.TotalAmount,
		Currency:  b.Currency,
		Reference: b.ID,
	})
	if err != nil {
		if _, cerr := s.repo.UpdatePayment(ctx, b.ID, StatusPending, PaymentChange{
			Status:        PaymentFailed,
			BookingStatus: StatusCancelled,
		}); cerr != nil {
			return nil, fmt.Errorf("%w: %w (release failed: %v)", ErrPaymentFailed, err, cerr)
		}
		return nil, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}

	change := PaymentChange{Status: PaymentPending, Ref: ch.ExternalID}
	if ch.Status == payment.StatusPaid {
		change.Status = PaymentPaid
		change.BookingStatus = StatusConfirmed
	}
	updated, err := s.repo.UpdatePayment(ctx, b.ID, StatusPending, change)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// publish notifies downstream consumers. Delivery failures are the publisher's to report;
// the booking change has already been committed.
func (s *service) publish(ctx context.Context, key string, payload Event) {
	_ = s.publisher.Publish(ctx, key, payload)
}

func (s *service) isOwner(b *Booking, r Requester) bool {
	if b.IsGuest() {
		return r.GuestToken != "" && b.GuestTokenHash != "" && s.hasher.Compare(b.GuestTokenHash, r.GuestToken) == nil
	}
	return r.IsUser() && b.UserID == r.UserID
}

// isHost reports whether the requester owns the booked resource. A lookup failure denies.
func (s *service) isHost(ctx context.Context, b *Booking, r Requester) bool {
	if !r.IsUser() {
		return false
	}
	res, err := s.resources.GetByID(ctx, b.ResourceID)
	if err != nil {
		return false
	}
	return res.HostID == r.UserID
}

func (s *service) canView(ctx context.Context, b *Booking, r Requester) bool {
	return r.IsAdmin || s.isOwner(b, r) || s.isHost(ctx, b, r)
}

func (s *service) GetByID(ctx context.Context, id string, requester Requester) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canView(ctx, b, requester) {
		return nil, ErrForbidden
	}
	return b, nil
}

func (s *service) ListForResource(ctx context.Context, resourceID string, requester Requester, filter Filter) ([]*Booking, int, error) {
	res, err := s.loadResource(ctx, resourceID)
	if err != nil {
		return nil, 0, err
	}
	if !requester.IsAdmin && (!requester.IsUser() || res.HostID != requester.UserID) {
		return nil, 0, ErrForbidden
	}

	filter.ResourceID = resourceID
	return s.repo.List(ctx, filter)
}

func (s *service) ListForRequester(ctx context.Context, requester Requester, filter Filter) ([]*Booking, int, error) {
	if !requester.IsUser() {
		return nil, 0, apperror.Detail(ErrForbidden, "sign in to list your bookings")
	}

	filter.UserID = requester.UserID
	return s.repo.List(ctx, filter)
}

func (s *service) Update(ctx context.Context, id string, req UpdateRequest, requester Requester) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !requester.IsAdmin && !s.isOwner(b, requester) {
		return nil, ErrForbidden
	}
	switch b.Status {
	case StatusCancelled:
		return nil, ErrAlreadyCancelled
	case StatusCompleted:
		return nil, apperror.Detail(ErrInvalidTransition, "a completed booking cannot be changed")
	}

	res, err := s.loadResource(ctx, b.ResourceID)
	if err != nil {
		return nil, err
	}

	current := b.Window()
	var w Window
	if res.IsSlotted() {
		if req.StartTime != nil || req.EndTime != nil {
			return nil, apperror.Detail(ErrInvalidInput, "this resource is booked by slot_date and slot_label, not by time range")
		}
		date, label := b.SlotDate, b.SlotLabel
		if req.SlotDate != nil {
			date = *req.SlotDate
		}
		if req.SlotLabel != nil {
			label = *req.SlotLabel
		}
		w, err = s.resolveWindow(res, time.Time{}, time.Time{}, date, label)
	} else {
		if req.SlotDate != nil || req.SlotLabel != nil {
			return nil, apperror.Detail(ErrInvalidInput, "this resource is booked by time range, not by slot")
		}
		start, end := b.StartTime, b.EndTime
		if req.StartTime != nil {
			start = *req.StartTime
		}
		if req.EndTime != nil {
			end = *req.EndTime
		}
		w, err = s.resolveWindow(res, start, end, "", "")
	}
	if err != nil {
		return nil, err
	}

	partySize := b.PartySize
	if req.PartySize != nil {
		partySize = *req.PartySize
	}
	moved := !w.Equal(current)

	if moved {
		if !res.Available {
			return nil, ErrResourceUnavailable
		}
		if err := s.admissible(res, w, partySize); err != nil {
			return nil, err
		}
	} else if !res.AcceptsParty(partySize) {
		return nil, apperror.Detail(ErrCapacityExceeded, fmt.Sprintf("party size %d exceeds capacity %d", partySize, res.MaxParty()))
	}

	total := res.Quote(w.Start, w.End)
	if b.PaymentStatus == PaymentPaid && total != b.TotalAmount {
		return nil, apperror.Detail(ErrInvalidInput, "a paid booking cannot change its total amount")
	}

	from := b.Status
	b.StartTime, b.EndTime = w.Start, w.End
	b.SlotDate, b.SlotLabel = w.SlotDate, w.SlotLabel
	b.PartySize = partySize
	b.TotalAmount = total
	if req.Notes != nil {
		b.Notes = strings.TrimSpace(*req.Notes)
	}

	write := func() error { return s.repo.Reschedule(ctx, b, from) }
	if moved {
		err = s.reserve(ctx, b.ResourceID, w, b.ID, write)
	} else {
		err = write()
	}
	if err != nil {
		return nil, s.explainMismatch(ctx, id, err)
	}

	s.publish(ctx, events.BookingUpdated, NewEvent(b))
	return b, nil
}

// explainMismatch converts a lost status guard into the error the caller should see.
func (s *service) explainMismatch(ctx context.Context, id string, err error) error {
	if !errors.Is(err, errStatusMismatch) {
		return err
	}
	current, gerr := s.repo.GetByID(ctx, id)
	if gerr != nil {
		return gerr
	}
	if current.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	return ErrConflict
}

func (s *service) Cancel(ctx context.Context, id string, requester Requester) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canView(ctx, b, requester) {
		return nil, ErrForbidden
	}
	if b.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	cancelled, err := s.repo.TransitionStatus(ctx, id, []Status{StatusPending, StatusConfirmed}, StatusCancelled)
	if err != nil {
		if errors.Is(err, errStatusMismatch) {
			current, gerr := s.repo.GetByID(ctx, id)
			if gerr != nil {
				return nil, gerr
			}
			if current.Status == StatusCancelled {
				return nil, ErrAlreadyCancelled
			}
			return nil, apperror.Detail(ErrInvalidTransition, fmt.Sprintf("a %s booking cannot be cancelled", current.Status))
		}
		return nil, err
	}

	s.publish(ctx, events.BookingCancelled, NewEvent(cancelled))
	return cancelled, nil
}

func (s *service) Confirm(ctx context.Context, id string, requester Requester) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !requester.IsAdmin && !s.isHost(ctx, b, requester) {
		return nil, ErrForbidden
	}

	var confirmed *Booking
	switch b.Status {
	case StatusCancelled:
		return nil, ErrAlreadyCancelled
	case StatusPending:
		change := PaymentChange{Status: b.PaymentStatus, BookingStatus: StatusConfirmed}
		if s.settleOnConfirm && b.PaymentStatus == PaymentPending {
			change.Status = PaymentPaid
		}
		confirmed, err = s.repo.UpdatePayment(ctx, id, StatusPending, change)
	case StatusConfirmed:
		if b.EndTime.After(s.now()) {
			return nil, apperror.Detail(ErrInvalidTransition, "booking is already confirmed and has not ended yet")
		}
		confirmed, err = s.repo.TransitionStatus(ctx, id, []Status{StatusConfirmed}, StatusCompleted)
	default:
		return nil, apperror.Detail(ErrInvalidTransition, "booking is already completed")
	}
	if err != nil {
		return nil, s.explainMismatch(ctx, id, err)
	}

	s.publish(ctx, events.BookingConfirmed, NewEvent(confirmed))
	return confirmed, nil
}

func (s *service) Refund(ctx context.Context, id string, requester Requester) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canView(ctx, b, requester) {
		return nil, ErrForbidden
	}
	if b.PaymentStatus != PaymentPaid {
		return nil, apperror.Detail(ErrInvalidTransition, "only paid bookings can be refunded")
	}

	if _, err := s.gateway.Refund(ctx, b.PaymentTxnID, b.TotalAmount); err != nil {
		return nil, fmt.Errorf("refund booking %s: %w", id, err)
	}

	refunded, err := s.repo.UpdatePayment(ctx, id, b.Status, PaymentChange{Status: PaymentRefunded})
	if err != nil {
		return nil, s.explainMismatch(ctx, id, err)
	}

	s.publish(ctx, events.BookingRefunded, NewEvent(refunded))
	return refunded, nil
}

// ApplyPaymentEvent maps a gateway notification onto the booking holding its order id.
// Re-delivered events are no-ops.
func (s *service) ApplyPaymentEvent(ctx context.Context, event payment.Event) (*Booking, error) {
	if event.ExternalID == "" {
		return nil, apperror.Detail(ErrInvalidInput, "payment event without reference")
	}

	for attempt := 0; attempt < maxPaymentAttempts; attempt++ {
		b, err := s.repo.GetByPaymentRef(ctx, event.ExternalID)
		if err != nil {
			return nil, err
		}

		change, apply := paymentTransition(b, event)
		if !apply {
			return b, nil
		}

		updated, err := s.repo.UpdatePayment(ctx, b.ID, b.Status, change)
		if errors.Is(err, errStatusMismatch) {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.publish(ctx, events.BookingPayment, NewEvent(updated))
		return updated, nil
	}
	return nil, ErrConflict
}

func paymentTransition(b *Booking, event payment.Event) (PaymentChange, bool) {
	change := PaymentChange{TxnID: event.TransactionID}

	switch event.Status {
	case payment.StatusPaid:
		if b.PaymentStatus == PaymentPaid || b.PaymentStatus == PaymentRefunded {
			return change, false
		}
		change.Status = PaymentPaid
		if b.Status == StatusPending {
			change.BookingStatus = StatusConfirmed
		}
	case payment.StatusFailed:
		// A late failure for an earlier attempt never downgrades a settled payment.
		if b.PaymentStatus != PaymentPending {
			return change, false
		}
		change.Status = PaymentFailed
	case payment.StatusRefunded:
		if b.PaymentStatus == PaymentRefunded {
			return change, false
		}
		change.Status = PaymentRefunded
	default:
		return change, false
	}
	return change, true
}

func (s *service) Availability(ctx context.Context, resourceID string, date string) ([]TimeSlot, error) {
	res, err := s.loadResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	day, err := time.ParseInLocation(dateLayout, date, s.loc)
	if err != nil {
		return nil, apperror.Detail(ErrInvalidInput, "date must be formatted as YYYY-MM-DD")
	}

	from, to := day, day.AddDate(0, 0, 1)
	bookings, _, err := s.repo.List(ctx, Filter{
		ResourceID: resourceID,
		ActiveOnly: true,
		From:       &from,
		To:         &to,
		PageSize:   1000,
		SortOrder:  "ASC",
	})
	if err != nil {
		return nil, err
	}

	windows := res.OpeningHours.WindowsOn(day.Weekday())
	if res.IsSlotted() {
		return CalculateSlotAvailability(day, windows, res.SlotDuration(), bookings)
	}
	return CalculateAvailability(day, windows, bookings)
}
