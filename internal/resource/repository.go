package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, res *Resource) error
	GetByID(ctx context.Context, id string) (*Resource, error)
	List(ctx context.Context, filter Filter) ([]*Resource, int, error)
	Update(ctx context.Context, res *Resource) error
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var resourceColumns = []string{
	"id", "host_id", "name", "kind", "capacity", "opening_hours",
	"slot_minutes", "price_per_unit", "currency", "available", "created_at", "updated_at",
}

func (r *pgxRepository) Create(ctx context.Context, res *Resource) error {
	capacity, hours, err := encodeJSON(res)
	if err != nil {
		return err
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.resources").
		Columns("host_id", "name", "kind", "capacity", "opening_hours", "slot_minutes", "price_per_unit", "currency", "available").
		Values(res.HostID, res.Name, res.Kind, capacity, hours, res.SlotMinutes, res.PricePerUnit, res.Currency, res.Available).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create resource query failed: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return fmt.Errorf("create resource failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Resource, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(resourceColumns...).
		From("public.resources").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get resource query failed: %w", err)
	}

	res, err := scanResource(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get resource failed: %w", err)
	}
	return res, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Resource, int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query := psql.Select(append(resourceColumns, "count(*) OVER() as total_count")...).
		From("public.resources")

	if filter.HostID != "" {
		query = query.Where(squirrel.Eq{"host_id": filter.HostID})
	}
	if filter.Kind != "" {
		query = query.Where(squirrel.Eq{"kind": filter.Kind})
	}
	if filter.AvailableOnly {
		query = query.Where(squirrel.Eq{"available": true})
	}

	orderDir := "DESC"
	if filter.SortOrder == "ASC" {
		orderDir = "ASC"
	}
	query = query.OrderBy("created_at " + orderDir)

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
		return nil, 0, fmt.Errorf("build list resources query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list resources failed: %w", err)
	}
	defer rows.Close()

	var result []*Resource
	var total int

	for rows.Next() {
		res, err := scanResource(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan resource failed: %w", err)
		}
		result = append(result, res)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list resources failed: %w", err)
	}

	return result, total, nil
}

func (r *pgxRepository) Update(ctx context.Context, res *Resource) error {
	capacity, hours, err := encodeJSON(res)
	if err != nil {
		return err
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.resources").
		Set("name", res.Name).
		Set("capacity", capacity).
		Set("opening_hours", hours).
		Set("slot_minutes", res.SlotMinutes).
		Set("price_per_unit", res.PricePerUnit).
		Set("currency", res.Currency).
		Set("available", res.Available).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": res.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update resource query failed: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&res.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update resource failed: %w", err)
	}
	return nil
}

func scanResource(row pgx.Row, extra ...any) (*Resource, error) {
	var res Resource
	var capacity, hours []byte

	dest := []any{
		&res.ID, &res.HostID, &res.Name, &res.Kind, &capacity, &hours,
		&res.SlotMinutes, &res.PricePerUnit, &res.Currency, &res.Available, &res.CreatedAt, &res.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(capacity, &res.Capacity); err != nil {
		return nil, fmt.Errorf("decode capacity: %w", err)
	}
	// NULL keeps OpeningHours nil (always open); '{}' decodes to an empty, never-open map.
	if hours != nil {
		if err := json.Unmarshal(hours, &res.OpeningHours); err != nil {
			return nil, fmt.Errorf("decode opening hours: %w", err)
		}
		if res.OpeningHours == nil {
			res.OpeningHours = OpeningHours{}
		}
	}
	return &res, nil
}

func encodeJSON(res *Resource) (capacity string, hours *string, err error) {
	b, err := json.Marshal(res.Capacity)
	if err != nil {
		return "", nil, fmt.Errorf("encode capacity: %w", err)
	}
	capacity = string(b)

	if res.OpeningHours != nil {
		b, err := json.Marshal(res.OpeningHours)
		if err != nil {
			return "", nil, fmt.Errorf("encode opening hours: %w", err)
		}
		s := string(b)
		hours = &s
	}
	return capacity, hours, nil
}
