package http

import (
	"time"

	"github.com/nekogravitycat/hospitality-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/resource"
)

type CapacityDTO struct {
	Total    int `json:"total,omitempty" binding:"min=0"`
	Adults   int `json:"adults,omitempty" binding:"min=0"`
	Children int `json:"children,omitempty" binding:"min=0"`
}

type TimeWindowDTO struct {
	Open  string `json:"open" binding:"required"`
	Close string `json:"close" binding:"required"`
}

type ResourceResponse struct {
	ID           string                     `json:"id"`
	HostID       string                     `json:"host_id"`
	Name         string                     `json:"name"`
	Kind         string                     `json:"kind"`
	Capacity     CapacityDTO                `json:"capacity"`
	MaxParty     int                        `json:"max_party"`
	OpeningHours map[string][]TimeWindowDTO `json:"opening_hours"`
	SlotMinutes  int                        `json:"slot_minutes,omitempty"`
	PricePerUnit int64                      `json:"price_per_unit"`
	Currency     string                     `json:"currency"`
	Available    bool                       `json:"available"`
	CreatedAt    time.Time                  `json:"created_at"`
	UpdatedAt    time.Time                  `json:"updated_at"`
}

func NewResponse(r *resource.Resource) ResourceResponse {
	return ResourceResponse{
		ID:           r.ID,
		HostID:       r.HostID,
		Name:         r.Name,
		Kind:         string(r.Kind),
		Capacity:     CapacityDTO(r.Capacity),
		MaxParty:     r.MaxParty(),
		OpeningHours: hoursToDTO(r.OpeningHours),
		SlotMinutes:  r.SlotMinutes,
		PricePerUnit: r.PricePerUnit,
		Currency:     r.Currency,
		Available:    r.Available,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type CreateRequest struct {
	Name         string                     `json:"name" binding:"required"`
	Kind         string                     `json:"kind" binding:"required,oneof=room restaurant service"`
	Capacity     CapacityDTO                `json:"capacity"`
	OpeningHours map[string][]TimeWindowDTO `json:"opening_hours"`
	SlotMinutes  int                        `json:"slot_minutes" binding:"min=0,max=1440"`
	PricePerUnit int64                      `json:"price_per_unit" binding:"min=0"`
	Currency     string                     `json:"currency" binding:"required,len=3"`
	Available    *bool                      `json:"available"`
}

// UpdateRequest patches a resource. Sending "clear_opening_hours": true makes it always open.
type UpdateRequest struct {
	Name              *string                     `json:"name" binding:"omitempty,min=1"`
	Capacity          *CapacityDTO                `json:"capacity"`
	OpeningHours      *map[string][]TimeWindowDTO `json:"opening_hours"`
	ClearOpeningHours bool                        `json:"clear_opening_hours"`
	SlotMinutes       *int                        `json:"slot_minutes" binding:"omitempty,min=0,max=1440"`
	PricePerUnit      *int64                      `json:"price_per_unit" binding:"omitempty,min=0"`
	Currency          *string                     `json:"currency" binding:"omitempty,len=3"`
	Available         *bool                       `json:"available"`
}

type ListResourcesRequest struct {
	request.ListParams
	HostID        string `form:"host_id" binding:"omitempty,uuid"`
	Kind          string `form:"kind" binding:"omitempty,oneof=room restaurant service"`
	AvailableOnly bool   `form:"available_only"`
}

func hoursToDTO(h resource.OpeningHours) map[string][]TimeWindowDTO {
	if h == nil {
		return nil
	}
	out := make(map[string][]TimeWindowDTO, len(h))
	for day, windows := range h {
		for _, w := range windows {
			out[day] = append(out[day], TimeWindowDTO(w))
		}
	}
	return out
}

func hoursFromDTO(h map[string][]TimeWindowDTO) resource.OpeningHours {
	if h == nil {
		return nil
	}
	out := make(resource.OpeningHours, len(h))
	for day, windows := range h {
		list := make([]resource.TimeWindow, 0, len(windows))
		for _, w := range windows {
			list = append(list, resource.TimeWindow(w))
		}
		out[day] = list
	}
	return out
}
