package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/hospitality-booking-backend/internal/auth"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/pkg/response"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/resource"
)

type Handler struct {
	service resource.Service
}

func NewHandler(service resource.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) List(c *gin.Context) {
	var req ListResourcesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	req.Normalize()

	filter := resource.Filter{
		HostID:        req.HostID,
		Kind:          resource.Kind(req.Kind),
		AvailableOnly: req.AvailableOnly,
		Page:          req.Page,
		PageSize:      req.PageSize,
		SortOrder:     req.SortOrder,
	}

	resources, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]ResourceResponse, len(resources))
	for i, r := range resources {
		items[i] = NewResponse(r)
	}

	c.JSON(http.StatusOK, response.NewPageResponse(items, req.Page, req.PageSize, total))
}

func (h *Handler) Create(c *gin.Context) {
	var body CreateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	available := true
	if body.Available != nil {
		available = *body.Available
	}

	req := resource.CreateRequest{
		HostID:       auth.GetUserID(c),
		Name:         body.Name,
		Kind:         resource.Kind(body.Kind),
		Capacity:     resource.Capacity(body.Capacity),
		OpeningHours: hoursFromDTO(body.OpeningHours),
		SlotMinutes:  body.SlotMinutes,
		PricePerUnit: body.PricePerUnit,
		Currency:     body.Currency,
		Available:    available,
	}

	res, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewResponse(res))
}

func (h *Handler) Get(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	res, err := h.service.GetByID(c.Request.Context(), req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewResponse(res))
}

func (h *Handler) Update(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	var body UpdateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	req := resource.UpdateRequest{
		Name:         body.Name,
		SlotMinutes:  body.SlotMinutes,
		PricePerUnit: body.PricePerUnit,
		Currency:     body.Currency,
		Available:    body.Available,
	}
	if body.Capacity != nil {
		capacity := resource.Capacity(*body.Capacity)
		req.Capacity = &capacity
	}
	switch {
	case body.ClearOpeningHours:
		var always resource.OpeningHours
		req.OpeningHours = &always
	case body.OpeningHours != nil:
		hours := hoursFromDTO(*body.OpeningHours)
		if hours == nil {
			hours = resource.OpeningHours{}
		}
		req.OpeningHours = &hours
	}

	res, err := h.service.Update(c.Request.Context(), uri.ID, req, auth.GetUserID(c), auth.IsSystemAdmin(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewResponse(res))
}
