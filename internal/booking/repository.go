package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	// Create inserts the booking. The store rejects an overlapping non-cancelled booking
	// with ErrSlotUnavailable even when the caller skipped HasOverlap.
	Create(ctx context.Context, booking *Booking) error
	GetByID(ctx context.Context, id string) (*Booking, error)
	GetByPaymentRef(ctx context.Context, ref string) (*Booking, error)
	List(ctx context.Context, filter Filter) ([]*Booking, int, error)

	// HasOverlap checks if there is any non-cancelled booking for the resource overlapping w.
	// excludeBookingID is used during updates to ignore the booking itself.
	HasOverlap(ctx context.Context, resourceID string, w Window, excludeBookingID string) (bool, error)

	// Reschedule writes the time, party, amount and notes of b provided its status is still from.
	Reschedule(ctx context.Context, b *Booking, from Status) error
	// TransitionStatus moves the booking to `to` if its current status is one of from.
	TransitionStatus(ctx context.Context, id string, from []Status, to Status) (*Booking, error)
	// UpdatePayment applies change if the booking status is still from.
	UpdatePayment(ctx context.Context, id string, from Status, change PaymentChange) (*Booking, error)
}

const (
	constraintNoOverlap  = "bookings_no_overlap"
	constraintUniqueSlot = "bookings_unique_slot"
)

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var bookingColumns = []string{
	"id", "resource_id", "COALESCE(user_id::text, '')",
	"COALESCE(guest_name, '')", "COALESCE(guest_email, '')", "COALESCE(guest_phone, '')", "COALESCE(guest_token_hash, '')",
	"start_time", "end_time", "COALESCE(slot_date::text, '')", "COALESCE(slot_label, '')",
	"party_size", "total_amount", "currency", "status", "payment_status",
	"COALESCE(payment_ref, '')", "COALESCE(payment_txn_id, '')", "notes", "created_at", "updated_at",
}

func scanBooking(row pgx.Row, extra ...any) (*Booking, error) {
	var b Booking
	var guestName, guestEmail, guestPhone string

	dest := []any{
		&b.ID, &b.ResourceID, &b.UserID,
		&guestName, &guestEmail, &guestPhone, &b.GuestTokenHash,
		&b.StartTime, &b.EndTime, &b.SlotDate, &b.SlotLabel,
		&b.PartySize, &b.TotalAmount, &b.Currency, &b.Status, &b.PaymentStatus,
		&b.PaymentRef, &b.PaymentTxnID, &b.Notes, &b.CreatedAt, &b.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if guestEmail != "" {
		b.Guest = &GuestContact{Name: guestName, Email: guestEmail, Phone: guestPhone}
	}
	return &b, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (r *pgxRepository) Create(ctx context.Context, b *Booking) error {
	var guestName, guestEmail, guestPhone any
	if b.Guest != nil {
		guestName, guestEmail, guestPhone = b.Guest.Name, b.Guest.Email, nullable(b.Guest.Phone)
	}

	query, args, err := psql.Insert("public.bookings").
		Columns(
			"resource_id", "user_id", "guest_name", "guest_email", "guest_phone", "guest_token_hash",
			"start_time", "end_time", "slot_date", "slot_label",
			"party_size", "total_amount", "currency", "status", "payment_status", "notes",
		).
		Values(
			b.ResourceID, nullable(b.UserID), guestName, guestEmail, guestPhone, nullable(b.GuestTokenHash),
			b.StartTime, b.EndTime, nullable(b.SlotDate), nullable(b.SlotLabel),
			b.PartySize, b.TotalAmount, b.Currency, b.Status, b.PaymentStatus, b.Notes,
		).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create booking query failed: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return mapWriteError("create booking failed", err)
	}
	return nil
}

func (r *pgxRepository) get(ctx context.Context, where squirrel.Sqlizer) (*Booking, error) {
	query, args, err := psql.Select(bookingColumns...).
		From("public.bookings").
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get booking query failed: %w", err)
	}

	b, err := scanBooking(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking failed: %w", err)
	}
	return b, nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	return r.get(ctx, squirrel.Eq{"id": id})
}

func (r *pgxRepository) GetByPaymentRef(ctx context.Context, ref string) (*Booking, error) {
	return r.get(ctx, squirrel.Eq{"payment_ref": ref})
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	query := psql.Select(append(bookingColumns, "count(*) OVER() as total_count")...).
		From("public.bookings")

	if filter.UserID != "" {
		query = query.Where(squirrel.Eq{"user_id": filter.UserID})
	}
	if filter.ResourceID != "" {
		query = query.Where(squirrel.Eq{"resource_id": filter.ResourceID})
	}
	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.ActiveOnly {
		query = query.Where(squirrel.NotEq{"status": StatusCancelled})
	}
	// Date range filtering (intersection logic)
	if filter.From != nil {
		query = query.Where(squirrel.Gt{"end_time": *filter.From})
	}
	if filter.To != nil {
		query = query.Where(squirrel.Lt{"start_time": *filter.To})
	}

	orderDir := "DESC"
	if filter.SortOrder == "ASC" {
		orderDir = "ASC"
	}
	query = query.OrderBy("start_time " + orderDir)

	// Pagination
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize
	query = query.Limit(uint64(filter.PageSize)).Offset(uint64(offset))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list bookings query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings failed: %w", err)
	}
	defer rows.Close()

	var bookings []*Booking
	var total int

	for rows.Next() {
		b, err := scanBooking(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan booking failed: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list bookings failed: %w", err)
	}

	return bookings, total, nil
}

func (r *pgxRepository) HasOverlap(ctx context.Context, resourceID string, w Window, excludeBookingID string) (bool, error) {
	// Logic:
	// 1. Resource matches
	// 2. Status is NOT cancelled
	// 3. (NewStart < ExistingEnd) AND (NewEnd > ExistingStart), for slot and range rows alike
	// 4. Exclude specific ID (for updates)
	subQuery := psql.Select("1").
		From("public.bookings").
		Where(squirrel.Eq{"resource_id": resourceID}).
		Where(squirrel.NotEq{"status": StatusCancelled}).
		Where(squirrel.Lt{"start_time": w.End}).
		Where(squirrel.Gt{"end_time": w.Start})

	if excludeBookingID != "" {
		subQuery = subQuery.Where(squirrel.NotEq{"id": excludeBookingID})
	}

	sql, args, err := subQuery.ToSql()
	if err != nil {
		return false, fmt.Errorf("build check overlap query failed: %w", err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, "SELECT EXISTS ("+sql+")", args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check overlap failed: %w", err)
	}
	return exists, nil
}

func (r *pgxRepository) Reschedule(ctx context.Context, b *Booking, from Status) error {
	query, args, err := psql.Update("public.bookings").
		Set("start_time", b.StartTime).
		Set("end_time", b.EndTime).
		Set("slot_date", nullable(b.SlotDate)).
		Set("slot_label", nullable(b.SlotLabel)).
		Set("party_size", b.PartySize).
		Set("total_amount", b.TotalAmount).
		Set("notes", b.Notes).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": b.ID, "status": from}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build reschedule booking query failed: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.missOrMismatch(ctx, b.ID)
		}
		return mapWriteError("reschedule booking failed", err)
	}
	return nil
}

func (r *pgxRepository) TransitionStatus(ctx context.Context, id string, from []Status, to Status) (*Booking, error) {
	query, args, err := psql.Update("public.bookings").
		Set("status", to).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id, "status": from}).
		Suffix("RETURNING " + joinColumns()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build transition booking query failed: %w", err)
	}

	b, err := scanBooking(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.missOrMismatch(ctx, id)
		}
		return nil, mapWriteError("transition booking failed", err)
	}
	return b, nil
}

func (r *pgxRepository) UpdatePayment(ctx context.Context, id string, from Status, change PaymentChange) (*Booking, error) {
	update := psql.Update("public.bookings").
		Set("payment_status", change.Status).
		Set("updated_at", squirrel.Expr("now()"))
	if change.Ref != "" {
		update = update.Set("payment_ref", change.Ref)
	}
	if change.TxnID != "" {
		update = update.Set("payment_txn_id", change.TxnID)
	}
	if change.BookingStatus != "" {
		update = update.Set("status", change.BookingStatus)
	}

	query, args, err := update.
		Where(squirrel.Eq{"id": id, "status": from}).
		Suffix("RETURNING " + joinColumns()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update payment query failed: %w", err)
	}

	b, err := scanBooking(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.missOrMismatch(ctx, id)
		}
		return nil, mapWriteError("update payment failed", err)
	}
	return b, nil
}

// missOrMismatch tells a missing row apart from a failed status guard.
func (r *pgxRepository) missOrMismatch(ctx context.Context, id string) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return errStatusMismatch
}

func joinColumns() string {
	return strings.Join(bookingColumns, ", ")
}

// mapWriteError turns constraint violations into domain errors.
func mapWriteError(msg string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.ExclusionViolation, pgerrcode.UniqueViolation:
			if pgErr.ConstraintName == constraintNoOverlap || pgErr.ConstraintName == constraintUniqueSlot {
				return ErrSlotUnavailable
			}
		case pgerrcode.ForeignKeyViolation:
			return ErrResourceNotFound
		case pgerrcode.CheckViolation:
			return ErrInvalidInput
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
