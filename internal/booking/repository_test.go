package booking

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/hospitality-booking-backend/internal/db"
)

type pgFixture struct {
	repo       Repository
	pool       *pgxpool.Pool
	userID     string
	resourceID string
	base       time.Time
}

// newPgFixture migrates the database at TEST_DATABASE_URL and seeds a host with one resource.
func newPgFixture(t *testing.T) pgFixture {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}
	ctx := context.Background()

	pool, err := db.NewPool(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	log, _ := test.NewNullLogger()
	require.NoError(t, db.Migrate(ctx, pool, log))

	f := pgFixture{
		repo: NewPgxRepository(pool),
		pool: pool,
		base: time.Now().UTC().Truncate(time.Hour).Add(48 * time.Hour),
	}
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO public.users (email, password_hash) VALUES ($1, 'x') RETURNING id`,
		uuid.NewString()+"@example.com",
	).Scan(&f.userID))
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO public.resources (host_id, name, kind, capacity, currency)
		 VALUES ($1, 'Room', 'room', '{"total": 4}'::jsonb, 'USD') RETURNING id`,
		f.userID,
	).Scan(&f.resourceID))

	t.Cleanup(func() {
		ctx := context.Background()
		_, _ = pool.Exec(ctx, `DELETE FROM public.bookings WHERE resource_id = $1`, f.resourceID)
		_, _ = pool.Exec(ctx, `DELETE FROM public.resources WHERE id = $1`, f.resourceID)
		_, _ = pool.Exec(ctx, `DELETE FROM public.users WHERE id = $1`, f.userID)
	})
	return f
}

func (f pgFixture) at(hours float64) time.Time {
	return f.base.Add(time.Duration(hours * float64(time.Hour)))
}

func (f pgFixture) rangeBooking(from, to float64) *Booking {
	return &Booking{
		ResourceID:    f.resourceID,
		UserID:        f.userID,
		StartTime:     f.at(from),
		EndTime:       f.at(to),
		PartySize:     1,
		Currency:      "USD",
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
	}
}

func (f pgFixture) slotBooking(from, to float64) *Booking {
	b := f.rangeBooking(from, to)
	b.SlotDate = b.StartTime.Format(dateLayout)
	b.SlotLabel = b.StartTime.Format("15:04")
	return b
}

func TestPgxHasOverlap(t *testing.T) {
	f := newPgFixture(t)
	ctx := context.Background()

	existing := f.rangeBooking(0, 2)
	require.NoError(t, f.repo.Create(ctx, existing))
	require.NotEmpty(t, existing.ID)

	tests := []struct {
		name    string
		window  Window
		exclude string
		want    bool
	}{
		{"overlapping tail", f.rangeBooking(1, 3).Window(), "", true},
		{"enclosing", f.rangeBooking(-1, 3).Window(), "", true},
		{"adjacent after", f.rangeBooking(2, 3).Window(), "", false},
		{"adjacent before", f.rangeBooking(-1, 0).Window(), "", false},
		{"itself when excluded", existing.Window(), existing.ID, false},
		{"slot inside the range", f.slotBooking(1, 2).Window(), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.repo.HasOverlap(ctx, f.resourceID, tt.window, tt.exclude)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := f.repo.TransitionStatus(ctx, existing.ID, []Status{StatusPending}, StatusCancelled)
	require.NoError(t, err)

	got, err := f.repo.HasOverlap(ctx, f.resourceID, f.rangeBooking(1, 3).Window(), "")
	require.NoError(t, err)
	assert.False(t, got, "cancelled bookings free their interval")
}

// Writes that skip HasOverlap and the resource lock are still refused by the schema.
func TestPgxExclusionBackstop(t *testing.T) {
	f := newPgFixture(t)
	ctx := context.Background()

	first := f.rangeBooking(0, 2)
	require.NoError(t, f.repo.Create(ctx, first))

	err := f.repo.Create(ctx, f.rangeBooking(1, 3))
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	err = f.repo.Create(ctx, f.slotBooking(1, 2))
	assert.ErrorIs(t, err, ErrSlotUnavailable, "slot rows share the exclusion constraint with range rows")

	slot := f.slotBooking(4, 5)
	require.NoError(t, f.repo.Create(ctx, slot))
	err = f.repo.Create(ctx, f.slotBooking(4, 5))
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	later := f.rangeBooking(6, 7)
	require.NoError(t, f.repo.Create(ctx, later))
	later.StartTime, later.EndTime = f.at(1), f.at(7)
	err = f.repo.Reschedule(ctx, later, StatusPending)
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	_, err = f.repo.TransitionStatus(ctx, first.ID, []Status{StatusPending}, StatusCancelled)
	require.NoError(t, err)
	require.NoError(t, f.repo.Create(ctx, f.rangeBooking(1, 3)))
}

func TestPgxGuardedWrites(t *testing.T) {
	f := newPgFixture(t)
	ctx := context.Background()

	b := f.rangeBooking(0, 1)
	require.NoError(t, f.repo.Create(ctx, b))

	t.Run("status guard", func(t *testing.T) {
		_, err := f.repo.TransitionStatus(ctx, b.ID, []Status{StatusConfirmed}, StatusCompleted)
		assert.ErrorIs(t, err, errStatusMismatch)

		_, err = f.repo.TransitionStatus(ctx, uuid.NewString(), []Status{StatusPending}, StatusCancelled)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	ref := "order_" + uuid.NewString()

	t.Run("payment update", func(t *testing.T) {
		updated, err := f.repo.UpdatePayment(ctx, b.ID, StatusPending, PaymentChange{
			Status:        PaymentPaid,
			Ref:           ref,
			BookingStatus: StatusConfirmed,
		})
		require.NoError(t, err)
		assert.Equal(t, StatusConfirmed, updated.Status)
		assert.Equal(t, PaymentPaid, updated.PaymentStatus)
		assert.Equal(t, ref, updated.PaymentRef)

		byRef, err := f.repo.GetByPaymentRef(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, b.ID, byRef.ID)

		_, err = f.repo.UpdatePayment(ctx, b.ID, StatusPending, PaymentChange{Status: PaymentFailed})
		assert.ErrorIs(t, err, errStatusMismatch)

		_, err = f.repo.UpdatePayment(ctx, uuid.NewString(), StatusPending, PaymentChange{Status: PaymentFailed})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("reschedule guard", func(t *testing.T) {
		b.Notes = "moved"
		b.StartTime, b.EndTime = f.at(2), f.at(3)

		err := f.repo.Reschedule(ctx, b, StatusPending)
		assert.ErrorIs(t, err, errStatusMismatch)

		require.NoError(t, f.repo.Reschedule(ctx, b, StatusConfirmed))
		stored, err := f.repo.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, "moved", stored.Notes)
		assert.WithinDuration(t, f.at(2), stored.StartTime, 0)
		assert.Equal(t, ref, stored.PaymentRef)
	})
}

func TestPgxList(t *testing.T) {
	f := newPgFixture(t)
	ctx := context.Background()

	for _, b := range []*Booking{f.rangeBooking(0, 1), f.rangeBooking(1, 2), f.rangeBooking(30, 31)} {
		require.NoError(t, f.repo.Create(ctx, b))
	}
	cancelled := f.rangeBooking(2, 3)
	require.NoError(t, f.repo.Create(ctx, cancelled))
	_, err := f.repo.TransitionStatus(ctx, cancelled.ID, []Status{StatusPending}, StatusCancelled)
	require.NoError(t, err)

	from, to := f.at(0), f.at(24)
	got, total, err := f.repo.List(ctx, Filter{
		ResourceID: f.resourceID,
		ActiveOnly: true,
		From:       &from,
		To:         &to,
		SortOrder:  "ASC",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, got, 2)
	assert.WithinDuration(t, f.at(0), got[0].StartTime, 0)
	assert.WithinDuration(t, f.at(1), got[1].StartTime, 0)

	_, total, err = f.repo.List(ctx, Filter{UserID: f.userID})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
}
