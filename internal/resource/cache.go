package resource

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// cachedService serves GetByID from memory. Updates through this service evict the entry;
// writes made by other instances become visible after ttl.
type cachedService struct {
	Service
	cache *cache.Cache
}

// NewCachedService wraps svc with a read-through cache. A non-positive ttl disables caching.
func NewCachedService(svc Service, ttl time.Duration) Service {
	if ttl <= 0 {
		return svc
	}
	return &cachedService{
		Service: svc,
		cache:   cache.New(ttl, 2*ttl),
	}
}

func (s *cachedService) GetByID(ctx context.Context, id string) (*Resource, error) {
	if cached, found := s.cache.Get(id); found {
		res := cached.(Resource)
		return &res, nil
	}

	res, err := s.Service.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(id, *res)
	return res, nil
}

func (s *cachedService) Update(ctx context.Context, id string, req UpdateRequest, actorID string, isSysAdmin bool) (*Resource, error) {
	s.cache.Delete(id)
	res, err := s.Service.Update(ctx, id, req, actorID, isSysAdmin)
	s.cache.Delete(id)
	return res, err
}
