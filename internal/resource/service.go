package resource

import (
	"context"
	"slices"
	"strings"

	"github.com/nekogravitycat/hospitality-booking-backend/internal/pkg/apperror"
)

type CreateRequest struct {
	HostID       string
	Name         string
	Kind         Kind
	Capacity     Capacity
	OpeningHours OpeningHours
	SlotMinutes  int
	PricePerUnit int64
	Currency     string
	Available    bool
}

type UpdateRequest struct {
	Name         *string
	Capacity     *Capacity
	OpeningHours *OpeningHours // pointer to nil clears the hours (always open)
	SlotMinutes  *int
	PricePerUnit *int64
	Currency     *string
	Available    *bool
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Resource, error)
	GetByID(ctx context.Context, id string) (*Resource, error)
	List(ctx context.Context, filter Filter) ([]*Resource, int, error)
	Update(ctx context.Context, id string, req UpdateRequest, actorID string, isSysAdmin bool) (*Resource, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func validate(res *Resource) error {
	if strings.TrimSpace(res.Name) == "" {
		return ErrEmptyName
	}
	if !slices.Contains(ValidKinds, res.Kind) {
		return apperror.Detail(ErrInvalidInput, "kind must be one of room, restaurant, service")
	}
	c := res.Capacity
	if c.Total < 0 || c.Adults < 0 || c.Children < 0 || c.Max() < 1 {
		return apperror.Detail(ErrInvalidInput, "capacity must admit at least one guest")
	}
	if c.Structured() && c.Total != 0 {
		return apperror.Detail(ErrInvalidInput, "capacity is either a total or an adult/child split, not both")
	}
	if err := res.OpeningHours.Validate(); err != nil {
		return apperror.Detail(ErrInvalidInput, err.Error())
	}
	if res.SlotMinutes < 0 || res.SlotMinutes > 24*60 {
		return apperror.Detail(ErrInvalidInput, "slot_minutes must be between 0 and 1440")
	}
	if res.PricePerUnit < 0 {
		return apperror.Detail(ErrInvalidInput, "price cannot be negative")
	}
	if len(res.Currency) != 3 {
		return apperror.Detail(ErrInvalidInput, "currency must be an ISO 4217 code")
	}
	return nil
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*Resource, error) {
	res := &Resource{
		HostID:       req.HostID,
		Name:         strings.TrimSpace(req.Name),
		Kind:         req.Kind,
		Capacity:     req.Capacity,
		OpeningHours: req.OpeningHours,
		SlotMinutes:  req.SlotMinutes,
		PricePerUnit: req.PricePerUnit,
		Currency:     strings.ToUpper(req.Currency),
		Available:    req.Available,
	}
	if err := validate(res); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*Resource, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Resource, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) Update(ctx context.Context, id string, req UpdateRequest, actorID string, isSysAdmin bool) (*Resource, error) {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !isSysAdmin && res.HostID != actorID {
		return nil, ErrForbidden
	}

	if req.Name != nil {
		res.Name = strings.TrimSpace(*req.Name)
	}
	if req.Capacity != nil {
		res.Capacity = *req.Capacity
	}
	if req.OpeningHours != nil {
		res.OpeningHours = *req.OpeningHours
	}
	if req.SlotMinutes != nil {
		res.SlotMinutes = *req.SlotMinutes
	}
	if req.PricePerUnit != nil {
		res.PricePerUnit = *req.PricePerUnit
	}
	if req.Currency != nil {
		res.Currency = strings.ToUpper(*req.Currency)
	}
	if req.Available != nil {
		res.Available = *req.Available
	}

	if err := validate(res); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}
