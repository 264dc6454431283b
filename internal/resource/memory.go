package resource

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu   sync.RWMutex
	rows map[string]Resource
}

// NewMemoryRepository returns a process-local Repository.
func NewMemoryRepository() Repository {
	return &memoryRepository{rows: make(map[string]Resource)}
}

func (r *memoryRepository) Create(ctx context.Context, res *Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	res.ID = uuid.NewString()
	res.CreatedAt = now
	res.UpdatedAt = now
	r.rows[res.ID] = *res
	return nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id string) (*Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &res, nil
}

func (r *memoryRepository) List(ctx context.Context, filter Filter) ([]*Resource, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Resource
	for _, res := range r.rows {
		if filter.HostID != "" && res.HostID != filter.HostID {
			continue
		}
		if filter.Kind != "" && res.Kind != filter.Kind {
			continue
		}
		if filter.AvailableOnly && !res.Available {
			continue
		}
		res := res
		matched = append(matched, &res)
	}

	sort.Slice(matched, func(i, j int) bool {
		if filter.SortOrder == "ASC" {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	return paginate(matched, filter.Page, filter.PageSize), len(matched), nil
}

func (r *memoryRepository) Update(ctx context.Context, res *Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[res.ID]; !ok {
		return ErrNotFound
	}
	res.UpdatedAt = time.Now().UTC()
	r.rows[res.ID] = *res
	return nil
}

func paginate[T any](items []T, page, pageSize int) []T {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return nil
	}
	end := min(start+pageSize, len(items))
	return items[start:end]
}
