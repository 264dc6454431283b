package user

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu   sync.RWMutex
	rows map[string]User
}

// NewMemoryRepository returns a process-local Repository with the same email uniqueness rule as the schema.
func NewMemoryRepository() Repository {
	return &memoryRepository{rows: make(map[string]User)}
}

func (r *memoryRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.rows {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryRepository) GetByID(ctx context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r *memoryRepository) Create(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.rows {
		if existing.Email == u.Email {
			return ErrEmailAlreadyUsed
		}
	}

	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()
	r.rows[u.ID] = *u
	return nil
}

func (r *memoryRepository) UpdateLastLogin(ctx context.Context, id string, t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.rows[id]
	if !ok {
		return ErrNotFound
	}
	u.LastLoginAt = &t
	r.rows[id] = u
	return nil
}

func (r *memoryRepository) List(ctx context.Context, filter Filter) ([]*User, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*User
	for _, u := range r.rows {
		if filter.Email != "" && !strings.Contains(strings.ToLower(u.Email), strings.ToLower(filter.Email)) {
			continue
		}
		if filter.DisplayName != "" && (u.DisplayName == nil ||
			!strings.Contains(strings.ToLower(*u.DisplayName), strings.ToLower(filter.DisplayName))) {
			continue
		}
		if filter.IsActive != nil && u.IsActive != *filter.IsActive {
			continue
		}
		u := u
		matched = append(matched, &u)
	}

	sort.Slice(matched, func(i, j int) bool {
		less := matched[i].CreatedAt.Before(matched[j].CreatedAt)
		if filter.SortBy == "email" {
			less = matched[i].Email < matched[j].Email
		}
		if filter.SortOrder == "ASC" {
			return less
		}
		return !less
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

func (r *memoryRepository) Update(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[u.ID]; !ok {
		return ErrNotFound
	}
	r.rows[u.ID] = *u
	return nil
}
