package booking_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/nekogravitycat/hospitality-booking-backend/internal/auth"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/booking"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/events"
	ev_mocks "github.com/nekogravitycat/hospitality-booking-backend/internal/events/mocks"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/lock"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/payment"
	pay_mocks "github.com/nekogravitycat/hospitality-booking-backend/internal/payment/mocks"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/resource"
)

// Saturday; the fixtures below book the following Monday.
var now = time.Date(2024, time.June, 1, 8, 0, 0, 0, time.UTC)

func monday(hour, minute int) time.Time {
	return time.Date(2024, time.June, 3, hour, minute, 0, 0, time.UTC)
}

type testDeps struct {
	service   booking.Service
	repo      booking.Repository
	resources resource.Service
	gateway   *pay_mocks.MockGateway
	publisher *ev_mocks.MockPublisher
	room      *resource.Resource
	ctx       context.Context
}

func newTestDeps(t *testing.T, opts ...booking.Option) (*gomock.Controller, testDeps) {
	t.Helper()
	ctrl := gomock.NewController(t)

	repo := booking.NewMemoryRepository()
	resources := resource.NewService(resource.NewMemoryRepository())
	gateway := pay_mocks.NewMockGateway(ctrl)
	publisher := ev_mocks.NewMockPublisher(ctrl)

	room, err := resources.Create(context.Background(), resource.CreateRequest{
		HostID:       "host-1",
		Name:         "Meeting Room R",
		Kind:         resource.KindRoom,
		Capacity:     resource.Capacity{Total: 4},
		OpeningHours: resource.OpeningHours{"monday": {{Open: "09:00", Close: "17:00"}}},
		PricePerUnit: 1000,
		Currency:     "USD",
		Available:    true,
	})
	require.NoError(t, err)

	opts = append([]booking.Option{booking.WithClock(func() time.Time { return now })}, opts...)
	svc := booking.NewService(repo, resources, lock.NewLocalLocker(5*time.Second), gateway, publisher, auth.NewBcryptHasher(4), opts...)

	return ctrl, testDeps{
		service: svc, repo: repo, resources: resources, gateway: gateway, publisher: publisher,
		room: room, ctx: context.Background(),
	}
}

// expectCharges makes every charge succeed with a distinct order id.
func (d testDeps) expectCharges() {
	var n atomic.Int64
	d.gateway.EXPECT().Charge(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req payment.ChargeRequest) (*payment.Charge, error) {
			return &payment.Charge{ExternalID: fmt.Sprintf("order_%d", n.Add(1)), Status: payment.StatusPending}, nil
		}).AnyTimes()
}

func (d testDeps) allowEvents() {
	d.publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
}

func userRequest(resourceID, userID string, start, end time.Time, party int) booking.CreateRequest {
	return booking.CreateRequest{
		ResourceID: resourceID,
		Requester:  booking.Requester{UserID: userID},
		StartTime:  start,
		EndTime:    end,
		PartySize:  party,
	}
}

func TestAdmissionScenario(t *testing.T) {
	ctrl, deps := newTestDeps(t)
	defer ctrl.Finish()
	deps.expectCharges()
	deps.allowEvents()

	first, err := deps.service.Create(deps.ctx, userRequest(deps.room.ID, "user-1", monday(10, 0), monday(12, 0), 4))
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, first.Status)
	assert.Equal(t, booking.PaymentPending, first.PaymentStatus)
	assert.Equal(t, int64(2000), first.TotalAmount)
	assert.NotEmpty(t, first.PaymentRef)

	_, err = deps.service.Create(deps.ctx, userRequest(deps.room.ID, "user-2", monday(10, 0), monday(12, 0), 1))
	require.ErrorIs(t, err, booking.ErrSlotUnavailable)
	assert.Equal(t, apperror.KindSlotUnavailable, apperror.KindOf(err))

	cancelled, err := deps.service.Cancel(deps.ctx, first.ID, booking.Requester{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, cancelled.Status)

	second, err := deps.service.Create(deps.ctx, userRequest(deps.room.ID, "user-2", monday(10, 0), monday(12, 0), 1))
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, second.Status)
}

func TestAdjacentRangesDoNotOverlap(t *testing.T) {
	ctrl, deps := newTestDeps(t)
	defer ctrl.Finish()
	deps.expectCharges()
	deps.allowEvents()

	_, err := deps.service.Create(deps.ctx, userRequest(deps.room.ID, "user-1", monday(10, 0), monday(12, 0), 2))
	require.NoError(t, err)
	_, err = deps.service.Create(deps.ctx, userRequest(deps.room.ID, "user-2", monday(12, 0), monday(13, 0), 2))
	require.NoError(t, err)
	_, err = deps.service.Create(deps.ctx, userRequest(deps.room.ID, "user-3", monday(9, 0), monday(10, 0), 2))
	require.NoError(t, err)

	_, err = deps.service.Create(deps.ctx, userRequest(deps.room.ID, "user-4", monday(11, 59), monday(12, 1), 2))
	assert.ErrorIs(t, err, booking.ErrSlotUnavailable)
}

func TestCreateValidation(t *testing.T) {
	ctrl, deps := newTestDeps(t)
	defer ctrl.Finish()
	deps.expectCharges()
	deps.allowEvents()

	tests := []struct {
		name string
		req  booking.CreateRequest
		kind apperror.Kind
		is   error
	}{
		{
			name: "capacity boundary exceeded",
			req:  userRequest(deps.room.ID, "user-1", monday(9, 0), monday(10, 0), 5),
			kind: apperror.KindCapacityExceeded,
		},
		{
			name: "one minute past close",
			req:  userRequest(deps.room.ID, "user-1", monday(16, 0), monday(17, 1), 1),
			kind: apperror.KindOutsideOperatingHours,
		},
		{
			name: "closed weekday",
			req:  userRequest(deps.room.ID, "user-1", monday(10, 0).AddDate(0, 0, 1), monday(11, 0).AddDate(0, 0, 1), 1),
			kind: apperror.KindOutsideOperatingHours,
		},
		{
			name: "start in the past",
			req:  userRequest(deps.room.ID, "user-1", now.Add(-time.Hour), now.Add(time.Hour), 1),
			kind: apperror.KindValidation,
			is:   booking.ErrStartTimePast,
		},
		{
			name: "end before start",
			req:  userRequest(deps.room.ID, "user-1", monday(12, 0), monday(11, 0), 1),
			kind: apperror.KindValidation,
			is:   booking.ErrInvalidTimeRange,
		},
		{
			name: "zero party",
			req:  userRequest(deps.room.ID, "user-1", monday(10, 0), monday(11, 0), 0),
			kind: apperror.KindValidation,
		},
		{
			name: "unknown resource",
			req:  userRequest("missing", "user-1", monday(10, 0), monday(11, 0), 1),
			kind: apperror.KindNotFound,
			is:   booking.ErrResourceNotFound,
		},
		{
			name: "guest without email",
			req: booking.CreateRequest{
				ResourceID: deps.room.ID,
				Requester:  booking.Requester{Guest: &booking.GuestContact{Name: "Ann"}},
				StartTime:  monday(10, 0), EndTime: monday(11, 0), PartySize: 1,
			},
			kind: apperror.KindValidation,
		},
		{
			name: "guest with malformed email",
			req: booking.CreateRequest{
				ResourceID: deps.room.ID,
				Requester:  booking.Requester{Guest: &booking.GuestContact{Name: "Ann", Email: "not-an-email"}},
				StartTime:  monday(10, 0), EndTime: monday(11, 0), PartySize: 1,
			},
			kind: apperror.KindValidation,
		},
		{
			name: "user and guest together",
			req: booking.CreateRequest{
				ResourceID: deps.room.ID,
				Requester:  booking.Requester{UserID: "user-1", Guest: &booking.GuestContact{Name: "Ann", Email: "ann@example.com"}},
				StartTime:  monday(10, 0), EndTime: monday(11, 0), PartySize: 1,
			},
			kind: apperror.KindValidation,
		},
		{
			name: "no requester at all",
			req: booking.CreateRequest{
				ResourceID: deps.room.ID,
				StartTime:  monday(10, 0), EndTime: monday(11, 0), PartySize: 1,
			},
			kind: apperror.KindValidation,
		},
		{
			name: "slot fields on a range resource",
			req: booking.CreateRequest{
				ResourceID: deps.room.ID,
				Requester:  booking.Requester{UserID: "user-1"},
				SlotDate:   "2024-06-03", SlotLabel: "10:00", PartySize: 1,
			},
			kind: apperror.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := deps.service.Create(deps.ctx, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperror.KindOf(err))
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}

	t.Run("capacity and closing time boundaries admit", func(t *testing.T) {
		b, err := deps.service.Create(deps.ctx, userRequest(deps.room.ID, "user-1", monday(16, 0), monday(17, 0), 4))
		require.NoError(t, err)
		assert.Equal(t, 4, b.PartySize)
	})
}

func TestUnavailableResource(t *testing.T) {
	ctrl, deps := newTestDeps(t)
	defer ctrl.Finish()

	closed := false
	_, err := deps.resources.Update(deps.ctx, deps.room.ID, resource.UpdateRequest{Available: &closed}, "host-1", false)
	require.NoError(t, err)

	_, err = deps.service.Create(deps.ctx, userRequest(deps.room.ID, "user-1", monday(10, 0), monday(11, 0), 1))
	assert.ErrorIs(t, err, booking.ErrResourceUnavailable)
}

func TestCancelIsIdempotent(t *testing.T) {
	ctrl, deps := newTestDeps(t)
	defer ctrl.Finish()
	deps.expectCharges()
	deps.allowEvents()

	b, err := deps.service.Create(deps.ctx, userRequest(deps.room.ID, "user-1", monday(10, 0), monday(11, 0), 1))
	require.NoError(t, err)

	_, err = deps.service.Cancel(deps.ctx, b.ID, booking.Requester{UserID: "user-2"})
	assert.ErrorIs(t, err, booking.ErrForbidden)

	first, err := deps.service.Cancel(deps.ctx, b.ID, booking.Requester{UserID: "user-1"})
	require.NoError(t, err)

	_, err = deps.service.Cancel(deps.ctx, b.ID, booking.Requester{UserID: "user-1"})
	require.ErrorIs(t, err, booking.ErrAlreadyCancelled)
	assert.Equal(t, apperror.KindAlreadyCancelled, apperror.KindOf(err))

	stored, err := deps.repo.GetByID(deps.ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, stored.Status)
	assert.Equal(t, first.UpdatedAt, stored.UpdatedAt)

	// the host may cancel too, but not twice
	_, err = deps.service.Cancel(deps.ctx, b.ID, booking.Requester{UserID: "host-1"})
	assert.ErrorIs(t, err, booking.ErrAlreadyCancelled)
}

func TestConcurrentRequestsAdmitExactlyOne(t *testing.T) {
	ctrl, deps := newTestDeps(t)
	defer ctrl.Finish()
	deps.expectCharges()
	deps.allowEvents()

	const contenders = 16
	var (
		wg        sync.WaitGroup
		admitted  atomic.Int64
		rejected  atomic.Int64
		unexpects = make(chan error, contenders)
	)

	start := make(chan struct{})
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := deps.service.Create(deps.ctx, userRequest(deps.room.ID, fmt.Sprintf("user-%d", i), monday(13, 0), monday(15, 0), 2))
			switch {
			case err == nil:
				admitted.Add(1)
			case errors.Is(err, booking.ErrSlotUnavailable), errors.Is(err, booking.ErrConflict):
				rejected.Add(1)
			default:
				unexpects <- err
			}
		}(i)
	}
	close(start)
	wg.Wait()
	close(unexpects)

	for err := range unexpects {
		t.Errorf("unexpected error: %v", err)
	}
	assert.Equal(t, int64(1), admitted.Load())
	assert.Equal(t, int64(contenders-1), rejected.Load())

	active, total, err := deps.repo.List(deps.ctx, booking.Filter{ResourceID: deps.room.ID, ActiveOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, active, 1)
}

func TestGuestBookingAccess(t *testing.T) {
	ctrl, deps := newTestDeps(t)
	defer ctrl.Finish()
	deps.expectCharges()
	deps.allowEvents()

	b, err := deps.service.Create(deps.ctx, booking.CreateRequest{
		ResourceID: deps.room.ID,
		Requester: booking.Requester{Guest: &booking.GuestContact{
			Name: " Ann Guest ", Email: "ann@example.com", Phone: "+15550100",
		}},
		StartTime: monday(10, 0),
		EndTime:   monday(11, 0),
		PartySize: 2,
	})
	require.NoError(t, err)
	require.NotEmpty(t, b.GuestAccessToken)
	assert.Equal(t, "Ann Guest", b.Guest.Name)
	assert.Empty(t, b.UserID)

	token := b.GuestAccessToken

	got, err := deps.service.GetByID(deps.ctx, b.ID, booking.Requester{GuestToken: token})
	require.NoError(t, err)
	assert.Empty(t, got.GuestAccessToken)

	_, err = deps.service.GetByID(deps.ctx, b.ID, booking.Requester{})
	assert.ErrorIs(t, err, booking.ErrForbidden)
	_, err = deps.service.GetByID(deps.ctx, b.ID, booking.Requester{GuestToken: "guessed"})
	assert.ErrorIs(t, err, booking.ErrForbidden)
	_, err = deps.service.GetByID(deps.ctx, b.ID, booking.Requester{UserID: "user-1"})
	assert.ErrorIs(t, err, booking.ErrForbidden)

	// host and admin can see it
	_, err = deps.service.GetByID(deps.ctx, b.ID, booking.Requester{UserID: "host-1"})
	require.NoError(t, err)
	_, err = deps.service.GetByID(deps.ctx, b.ID, booking.Requester{UserID: "admin", IsAdmin: true})
	require.NoError(t, err)

	party := 3
	_, err = deps.service.Update(deps.ctx, b.ID, booking.UpdateRequest{PartySize: &party}, booking.Requester{})
	assert.ErrorIs(t, err, booking.ErrForbidden)

	updated, err := deps.service.Update(deps.ctx, b.ID, booking.UpdateRequest{PartySize: &party}, booking.Requester{GuestToken: token})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.PartySize)

	cancelled, err := deps.service.Cancel(deps.ctx, b.ID, booking.Requester{GuestToken: token})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, cancelled.Status)
}

func TestUpdateBooking(t *testing.T) {
	ctrl, deps := newTestDeps(t)
	defer ctrl.Finish()
	deps.expectCharges()
	deps.allowEvents()

	owner := booking.Requester{UserID: "user-1"}
	b, err := deps.service.Create(deps.ctx, userRequest(deps.room.ID, "user-1", monday(10, 0), monday(12, 0), 2))
	require.NoError(t, err)
	_, err = deps.service.Create(deps.ctx, userRequest(deps.room.ID, "user-2", monday(14, 0), monday(15, 0), 2))
	require.NoError(t, err)

	t.Run("overlapping itself is allowed", func(t *testing.T) {
		start, end := monday(11, 0), monday(13, 0)
		updated, err := deps.service.Update(deps.ctx, b.ID, booking.UpdateRequest{StartTime: &start, EndTime: &end}, owner)
		require.NoError(t, err)
		assert.Equal(t, start, updated.StartTime)
		assert.Equal(t, int64(2000), updated.TotalAmount)
	})

	t.Run("overlapping another booking is rejected", func(t *testing.T) {
		end := monday(14, 30)
		_, err := deps.service.Update(deps.ctx, b.ID, booking.UpdateRequest{EndTime: &end}, owner)
		assert.ErrorIs(t, err, booking.ErrSlotUnavailable)

		stored, err := deps.repo.GetByID(deps.ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, monday(13, 0), stored.EndTime)
	})

	t.Run("capacity is rechecked", func(t *testing.T) {
		party := 5
		_, err := deps.service.Update(deps.ctx, b.ID, booking.UpdateRequest{PartySize: &party}, owner)
		assert.ErrorIs(t, err, booking.ErrCapacityExceeded)
	})

	t.Run("operating hours are rechecked", func(t *testing.T) {
		end := monday(17, 30)
		start := monday(16, 0)
		_, err := deps.service.Update(deps.ctx, b.ID, booking.UpdateRequest{StartTime: &start, EndTime: &end}, owner)
		assert.ErrorIs(t, err, booking.ErrOutsideOperatingHours)
	})

	t.Run("a closed resource accepts no moves", func(t *testing.T) {
		closed, open := false, true
		_, err := deps.resources.Update(deps.ctx, deps.room.ID, resource.UpdateRequest{Available: &closed}, "host-1", false)
		require.NoError(t, err)
		defer func() {
			_, err := deps.resources.Update(deps.ctx, deps.room.ID, resource.UpdateRequest{Available: &open}, "host-1", false)
			require.NoError(t, err)
		}()

		start, end := monday(15, 0), monday(16, 0)
		_, err = deps.service.Update(deps.ctx, b.ID, booking.UpdateRequest{StartTime: &start, EndTime: &end}, owner)
		assert.ErrorIs(t, err, booking.ErrResourceUnavailable)

		stored, err := deps.repo.GetByID(deps.ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, monday(11, 0), stored.StartTime)

		// changes that keep the booked time are still allowed
		notes := "window seat"
		updated, err := deps.service.Update(deps.ctx, b.ID, booking.UpdateRequest{Notes: &notes}, owner)
		require.NoError(t, err)
		assert.Equal(t, "window seat", updated.Notes)
	})

	t.Run("only the owner may update", func(t *testing.T) {
		notes := "late arrival"
		_, err := deps.service.Update(deps.ctx, b.ID, booking.UpdateRequest{Notes: &notes}, booking.Requester{UserID: "host-1"})
		assert.ErrorIs(t, err, booking.ErrForbidden)
	})

	t.Run("cancelled booking cannot be updated", func(t *testing.T) {
		_, err := deps.service.Cancel(deps.ctx, b.ID, owner)
		require.NoError(t, err)

		notes := "never mind"
		_, err = deps.service.Update(deps.ctx, b.ID, booking.UpdateRequest{Notes: &notes}, owner)
		assert.ErrorIs(t, err, booking.ErrAlreadyCancelled)
	})
}

func TestPaymentGatewayFailureReleasesSlot(t *testing.T) {
	ctrl, deps := newTestDeps(t)
	defer ctrl.Finish()
	deps.allowEvents()

	deps.gateway.EXPECT().Charge(gomock.Any(), gomock.Any()).Return(nil, errors.New("gateway down")).Times(1)

	_, err := deps.service.Create(deps.ctx, userRequest(deps.room.ID, "user-1", monday(10, 0), monday(11, 0), 1))
	require.ErrorIs(t, err, booking.ErrPaymentFailed)
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))

	all, _, err := deps.repo.List(deps.ctx, booking.Filter{ResourceID: deps.room.ID})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, booking.StatusCancelled, all[0].Status)
	assert.Equal(t, booking.PaymentFailed, all[0].PaymentStatus)

	deps.gateway.EXPECT().Charge(gomock.Any(), gomock.Any()).Return(&payment.Charge{ExternalID: "order_ok", Status: payment.StatusPending}, nil).Times(1)
	_, err = deps.service.Create(deps.ctx, userRequest(deps.room.ID, "user-1", monday(10, 0), monday(11, 0), 1))
	require.NoError(t, err)
}

func TestApplyPaymentEvent(t *testing.T) {
	ctrl, deps := newTestDeps(t)
	defer ctrl.Finish()

	deps.gateway.EXPECT().Charge(gomock.Any(), gomock.Any()).Return(&payment.Charge{ExternalID: "order_42", Status: payment.StatusPending}, nil).Times(1)
	deps.publisher.EXPECT().Publish(gomock.Any(), events.BookingCreated, gomock.Any()).Return(nil).Times(1)
	deps.publisher.EXPECT().Publish(gomock.Any(), events.BookingPayment, gomock.Any()).Return(nil).Times(1)
	deps.publisher.EXPECT().Publish(gomock.Any(), events.BookingRefunded, gomock.Any()).Return(nil).Times(1)

	b, err := deps.service.Create(deps.ctx, userRequest(deps.room.ID, "user-1", monday(10, 0), monday(11, 0), 1))
	require.NoError(t, err)
	assert.Equal(t, "order_42", b.PaymentRef)

	paid := payment.Event{ExternalID: "order_42", TransactionID: "pay_7", Status: payment.StatusPaid}
	updated, err := deps.service.ApplyPaymentEvent(deps.ctx, paid)
	require.NoError(t, err)
	assert.Equal(t, booking.PaymentPaid, updated.PaymentStatus)
	assert.Equal(t, booking.StatusConfirmed, updated.Status)
	assert.Equal(t, "pay_7", updated.PaymentTxnID)

	// re-delivery is a no-op and publishes nothing
	again, err := deps.service.ApplyPaymentEvent(deps.ctx, paid)
	require.NoError(t, err)
	assert.Equal(t, updated.UpdatedAt, again.UpdatedAt)

	// a late failure does not downgrade a settled payment
	failed, err := deps.service.ApplyPaymentEvent(deps.ctx, payment.Event{ExternalID: "order_42", Status: payment.StatusFailed})
	require.NoError(t, err)
	assert.Equal(t, booking.PaymentPaid, failed.PaymentStatus)

	_, err = deps.service.ApplyPaymentEvent(deps.ctx, payment.Event{ExternalID: "order_unknown", Status: payment.StatusPaid})
	assert.ErrorIs(t, err, booking.ErrNotFound)

	deps.gateway.EXPECT().Refund(gomock.Any(), "pay_7", int64(1000)).Return(&payment.RefundResult{ExternalID: "rfnd_1", Status: payment.StatusRefunded}, nil).Times(1)
	refunded, err := deps.service.Refund(deps.ctx, b.ID, booking.Requester{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, booking.PaymentRefunded, refunded.PaymentStatus)

	_, err = deps.service.Refund(deps.ctx, b.ID, booking.Requester{UserID: "user-1"})
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)

	// gateway echo of our own refund
	echoed, err := deps.service.ApplyPaymentEvent(deps.ctx, payment.Event{ExternalID: "order_42", Status: payment.StatusRefunded})
	require.NoError(t, err)
	assert.Equal(t, booking.PaymentRefunded, echoed.PaymentStatus)
}

func TestPaidEventKeepsCancelledBooking(t *testing.T) {
	ctrl, deps := newTestDeps(t)
	defer ctrl.Finish()
	deps.expectCharges()
	deps.allowEvents()

	b, err := deps.service.Create(deps.ctx, userRequest(deps.room.ID, "user-1", monday(10, 0), monday(11, 0), 1))
	require.NoError(t, err)
	_, err = deps.service.Cancel(deps.ctx, b.ID, booking.Requester{UserID: "user-1"})
	require.NoError(t, err)

	updated, err := deps.service.ApplyPaymentEvent(deps.ctx, payment.Event{ExternalID: b.PaymentRef, Status: payment.StatusPaid})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, updated.Status)
	assert.Equal(t, booking.PaymentPaid, updated.PaymentStatus)
}

func TestConfirm(t *testing.T) {
	ctrl, deps := newTestDeps(t, booking.WithOfflineSettlement())
	defer ctrl.Finish()
	deps.expectCharges()
	deps.allowEvents()

	b, err := deps.service.Create(deps.ctx, userRequest(deps.room.ID, "user-1", monday(10, 0), monday(11, 0), 1))
	require.NoError(t, err)

	_, err = deps.service.Confirm(deps.ctx, b.ID, booking.Requester{UserID: "user-1"})
	assert.ErrorIs(t, err, booking.ErrForbidden)

	confirmed, err := deps.service.Confirm(deps.ctx, b.ID, booking.Requester{UserID: "host-1"})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, confirmed.Status)
	assert.Equal(t, booking.PaymentPaid, confirmed.PaymentStatus)

	// has not ended yet
	_, err = deps.service.Confirm(deps.ctx, b.ID, booking.Requester{UserID: "host-1"})
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)
}

func TestSlotBookings(t *testing.T) {
	ctrl, deps := newTestDeps(t)
	defer ctrl.Finish()
	deps.expectCharges()
	deps.allowEvents()

	// 90 minute slots: 11:30 and 13:00
	restaurant, err := deps.resources.Create(deps.ctx, resource.CreateRequest{
		HostID:       "host-2",
		Name:         "Bistro",
		Kind:         resource.KindRestaurant,
		Capacity:     resource.Capacity{Adults: 6, Children: 2},
		OpeningHours: resource.OpeningHours{"monday": {{Open: "11:30", Close: "14:30"}}},
		SlotMinutes:  90,
		PricePerUnit: 500,
		Currency:     "EUR",
		Available:    true,
	})
	require.NoError(t, err)

	slot := func(user, label string, party int) booking.CreateRequest {
		return booking.CreateRequest{
			ResourceID: restaurant.ID,
			Requester:  booking.Requester{UserID: user},
			SlotDate:   "2024-06-03",
			SlotLabel:  label,
			PartySize:  party,
		}
	}

	b, err := deps.service.Create(deps.ctx, slot("user-1", "13:00", 8))
	require.NoError(t, err)
	assert.Equal(t, monday(13, 0), b.StartTime)
	assert.Equal(t, monday(14, 30), b.EndTime)
	assert.Equal(t, int64(500), b.TotalAmount)

	_, err = deps.service.Create(deps.ctx, slot("user-2", "13:00", 2))
	assert.ErrorIs(t, err, booking.ErrSlotUnavailable)

	// labels off the slot grid would overlap their neighbours
	_, err = deps.service.Create(deps.ctx, slot("user-2", "12:00", 2))
	assert.ErrorIs(t, err, booking.ErrOutsideOperatingHours)
	_, err = deps.service.Create(deps.ctx, slot("user-2", "13:30", 2))
	assert.ErrorIs(t, err, booking.ErrOutsideOperatingHours)

	// a slot must end by closing time
	_, err = deps.service.Create(deps.ctx, slot("user-3", "14:30", 2))
	assert.ErrorIs(t, err, booking.ErrOutsideOperatingHours)

	_, err = deps.service.Create(deps.ctx, slot("user-3", "11:30", 9))
	assert.ErrorIs(t, err, booking.ErrCapacityExceeded)

	_, err = deps.service.Create(deps.ctx, booking.CreateRequest{
		ResourceID: restaurant.ID,
		Requester:  booking.Requester{UserID: "user-3"},
		StartTime:  monday(12, 0),
		EndTime:    monday(13, 0),
		PartySize:  2,
	})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	free, err := deps.service.Availability(deps.ctx, restaurant.ID, "2024-06-03")
	require.NoError(t, err)
	labels := make([]string, len(free))
	for i, s := range free {
		labels[i] = s.Label
	}
	assert.Equal(t, []string{"11:30"}, labels)

	stored, _, err := deps.repo.List(deps.ctx, booking.Filter{ResourceID: restaurant.ID, ActiveOnly: true})
	require.NoError(t, err)
	assertNoOverlap(t, stored)
}

func TestSlotGridHourly(t *testing.T) {
	ctrl, deps := newTestDeps(t)
	defer ctrl.Finish()
	deps.expectCharges()
	deps.allowEvents()

	cafe, err := deps.resources.Create(deps.ctx, resource.CreateRequest{
		HostID:       "host-2",
		Name:         "Cafe",
		Kind:         resource.KindRestaurant,
		Capacity:     resource.Capacity{Total: 4},
		OpeningHours: resource.OpeningHours{"monday": {{Open: "11:00", Close: "15:00"}}},
		SlotMinutes:  60,
		PricePerUnit: 100,
		Currency:     "EUR",
		Available:    true,
	})
	require.NoError(t, err)

	slot := func(user, label string) booking.CreateRequest {
		return booking.CreateRequest{
			ResourceID: cafe.ID,
			Requester:  booking.Requester{UserID: user},
			SlotDate:   "2024-06-03",
			SlotLabel:  label,
			PartySize:  2,
		}
	}

	_, err = deps.service.Create(deps.ctx, slot("user-1", "11:00"))
	require.NoError(t, err)
	_, err = deps.service.Create(deps.ctx, slot("user-2", "11:30"))
	assert.ErrorIs(t, err, booking.ErrOutsideOperatingHours)
	_, err = deps.service.Create(deps.ctx, slot("user-2", "14:30"))
	assert.ErrorIs(t, err, booking.ErrOutsideOperatingHours)
	last, err := deps.service.Create(deps.ctx, slot("user-2", "14:00"))
	require.NoError(t, err)
	assert.Equal(t, monday(15, 0), last.EndTime)

	stored, _, err := deps.repo.List(deps.ctx, booking.Filter{ResourceID: cafe.ID, ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	assertNoOverlap(t, stored)
}

func TestSlotsRespectEarlierRangeBookings(t *testing.T) {
	ctrl, deps := newTestDeps(t)
	defer ctrl.Finish()
	deps.expectCharges()
	deps.allowEvents()

	existing, err := deps.service.Create(deps.ctx, userRequest(deps.room.ID, "user-1", monday(10, 0), monday(12, 0), 2))
	require.NoError(t, err)

	// the host switches the room to hourly slots
	hourly := 60
	_, err = deps.resources.Update(deps.ctx, deps.room.ID, resource.UpdateRequest{SlotMinutes: &hourly}, "host-1", false)
	require.NoError(t, err)

	slot := func(label string) booking.CreateRequest {
		return booking.CreateRequest{
			ResourceID: deps.room.ID,
			Requester:  booking.Requester{UserID: "user-2"},
			SlotDate:   "2024-06-03",
			SlotLabel:  label,
			PartySize:  1,
		}
	}

	_, err = deps.service.Create(deps.ctx, slot("10:00"))
	assert.ErrorIs(t, err, booking.ErrSlotUnavailable)
	_, err = deps.service.Create(deps.ctx, slot("11:00"))
	assert.ErrorIs(t, err, booking.ErrSlotUnavailable)
	_, err = deps.service.Create(deps.ctx, slot("12:00"))
	require.NoError(t, err)

	free, err := deps.service.Availability(deps.ctx, deps.room.ID, "2024-06-03")
	require.NoError(t, err)
	labels := make([]string, len(free))
	for i, s := range free {
		labels[i] = s.Label
	}
	assert.Equal(t, []string{"09:00", "13:00", "14:00", "15:00", "16:00"}, labels)

	_, err = deps.service.Cancel(deps.ctx, existing.ID, booking.Requester{UserID: "user-1"})
	require.NoError(t, err)
	_, err = deps.service.Create(deps.ctx, slot("10:00"))
	require.NoError(t, err)
}

func TestFreeBookingIsSettledWithoutGateway(t *testing.T) {
	ctrl, deps := newTestDeps(t)
	defer ctrl.Finish()
	// no Charge expectation: reaching the gateway fails the test
	deps.allowEvents()

	lounge, err := deps.resources.Create(deps.ctx, resource.CreateRequest{
		HostID:       "host-2",
		Name:         "Lounge",
		Kind:         resource.KindService,
		Capacity:     resource.Capacity{Total: 10},
		OpeningHours: resource.OpeningHours{"monday": {{Open: "09:00", Close: "17:00"}}},
		SlotMinutes:  30,
		Currency:     "USD",
		Available:    true,
	})
	require.NoError(t, err)

	b, err := deps.service.Create(deps.ctx, booking.CreateRequest{
		ResourceID: lounge.ID,
		Requester:  booking.Requester{UserID: "user-1"},
		SlotDate:   "2024-06-03",
		SlotLabel:  "09:30",
		PartySize:  3,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.TotalAmount)
	assert.Equal(t, booking.PaymentPaid, b.PaymentStatus)
	assert.Equal(t, booking.StatusConfirmed, b.Status)
	assert.Empty(t, b.PaymentRef)

	stored, err := deps.repo.GetByID(deps.ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.PaymentPaid, stored.PaymentStatus)
	assert.Equal(t, booking.StatusConfirmed, stored.Status)
}

func assertNoOverlap(t *testing.T, bookings []*booking.Booking) {
	t.Helper()
	for i, a := range bookings {
		for _, b := range bookings[i+1:] {
			assert.False(t, a.StartTime.Before(b.EndTime) && b.StartTime.Before(a.EndTime),
				"bookings %s [%s,%s) and %s [%s,%s) overlap", a.ID, a.StartTime, a.EndTime, b.ID, b.StartTime, b.EndTime)
		}
	}
}

func TestAvailability(t *testing.T) {
	ctrl, deps := newTestDeps(t)
	defer ctrl.Finish()
	deps.expectCharges()
	deps.allowEvents()

	_, err := deps.service.Create(deps.ctx, userRequest(deps.room.ID, "user-1", monday(10, 0), monday(12, 0), 1))
	require.NoError(t, err)

	free, err := deps.service.Availability(deps.ctx, deps.room.ID, "2024-06-03")
	require.NoError(t, err)
	assert.Equal(t, []booking.TimeSlot{
		{StartTime: monday(9, 0), EndTime: monday(10, 0)},
		{StartTime: monday(12, 0), EndTime: monday(17, 0)},
	}, free)

	closed, err := deps.service.Availability(deps.ctx, deps.room.ID, "2024-06-04")
	require.NoError(t, err)
	assert.Empty(t, closed)

	_, err = deps.service.Availability(deps.ctx, deps.room.ID, "03/06/2024")
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestListings(t *testing.T) {
	ctrl, deps := newTestDeps(t)
	defer ctrl.Finish()
	deps.expectCharges()
	deps.allowEvents()

	_, err := deps.service.Create(deps.ctx, userRequest(deps.room.ID, "user-1", monday(9, 0), monday(10, 0), 1))
	require.NoError(t, err)
	_, err = deps.service.Create(deps.ctx, userRequest(deps.room.ID, "user-2", monday(10, 0), monday(11, 0), 1))
	require.NoError(t, err)

	mine, total, err := deps.service.ListForRequester(deps.ctx, booking.Requester{UserID: "user-1"}, booking.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "user-1", mine[0].UserID)

	_, _, err = deps.service.ListForRequester(deps.ctx, booking.Requester{GuestToken: "x"}, booking.Filter{})
	assert.ErrorIs(t, err, booking.ErrForbidden)

	all, total, err := deps.service.ListForResource(deps.ctx, deps.room.ID, booking.Requester{UserID: "host-1"}, booking.Filter{SortOrder: "ASC"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.True(t, all[0].StartTime.Before(all[1].StartTime))

	_, _, err = deps.service.ListForResource(deps.ctx, deps.room.ID, booking.Requester{UserID: "user-1"}, booking.Filter{})
	assert.ErrorIs(t, err, booking.ErrForbidden)
}
