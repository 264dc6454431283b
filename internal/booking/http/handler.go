package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/hospitality-booking-backend/internal/auth"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/booking"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/pkg/response"
)

type Handler struct {
	service booking.Service
}

func NewHandler(service booking.Service) *Handler {
	return &Handler{service: service}
}

// requesterFrom builds the explicit identity handed to the booking service.
func requesterFrom(c *gin.Context) booking.Requester {
	return booking.Requester{
		UserID:     auth.GetUserID(c),
		IsAdmin:    auth.IsSystemAdmin(c),
		GuestToken: c.GetHeader(GuestTokenHeader),
	}
}

func (h *Handler) Create(c *gin.Context) {
	var body CreateBookingRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	requester := requesterFrom(c)
	if body.Guest != nil {
		requester.Guest = &booking.GuestContact{
			Name:  body.Guest.Name,
			Email: body.Guest.Email,
			Phone: body.Guest.Phone,
		}
	}

	req := booking.CreateRequest{
		ResourceID: body.ResourceID,
		Requester:  requester,
		SlotDate:   body.SlotDate,
		SlotLabel:  body.SlotLabel,
		PartySize:  body.PartySize,
		Notes:      body.Notes,
	}
	if body.StartTime != nil {
		req.StartTime = *body.StartTime
	}
	if body.EndTime != nil {
		req.EndTime = *body.EndTime
	}

	b, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewBookingResponse(b))
}

func (h *Handler) Get(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	b, err := h.service.GetByID(c.Request.Context(), uri.ID, requesterFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewBookingResponse(b))
}

// ListMine lists the bookings made by the authenticated user.
func (h *Handler) ListMine(c *gin.Context) {
	var req ListBookingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(c, err)
		return
	}
	req.Normalize()

	bookings, total, err := h.service.ListForRequester(c.Request.Context(), requesterFrom(c), req.Filter())
	if err != nil {
		response.Error(c, err)
		return
	}

	h.page(c, bookings, req, total)
}

// ListForResource lists a resource's bookings for its host.
func (h *Handler) ListForResource(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	var req ListBookingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(c, err)
		return
	}
	req.Normalize()

	bookings, total, err := h.service.ListForResource(c.Request.Context(), uri.ID, requesterFrom(c), req.Filter())
	if err != nil {
		response.Error(c, err)
		return
	}

	h.page(c, bookings, req, total)
}

func (h *Handler) page(c *gin.Context, bookings []*booking.Booking, req ListBookingsRequest, total int) {
	items := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		items[i] = NewBookingResponse(b)
	}
	c.JSON(http.StatusOK, response.NewPageResponse(items, req.Page, req.PageSize, total))
}

func (h *Handler) Update(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	var body UpdateBookingRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}
	if err := body.Validate(); err != nil {
		response.Error(c, err)
		return
	}

	req := booking.UpdateRequest{
		StartTime: body.StartTime,
		EndTime:   body.EndTime,
		SlotDate:  body.SlotDate,
		SlotLabel: body.SlotLabel,
		PartySize: body.PartySize,
		Notes:     body.Notes,
	}

	b, err := h.service.Update(c.Request.Context(), uri.ID, req, requesterFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewBookingResponse(b))
}

// transition serves the POST /bookings/:id/<action> endpoints.
func (h *Handler) transition(c *gin.Context, do func(context.Context, string, booking.Requester) (*booking.Booking, error)) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	b, err := do(c.Request.Context(), uri.ID, requesterFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewBookingResponse(b))
}

func (h *Handler) Cancel(c *gin.Context) {
	h.transition(c, h.service.Cancel)
}

func (h *Handler) Confirm(c *gin.Context) {
	h.transition(c, h.service.Confirm)
}

func (h *Handler) Refund(c *gin.Context) {
	h.transition(c, h.service.Refund)
}

func (h *Handler) Availability(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	var query AvailabilityRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}

	slots, err := h.service.Availability(c.Request.Context(), uri.ID, query.Date)
	if err != nil {
		response.Error(c, err)
		return
	}

	free := make([]TimeSlotResponse, len(slots))
	for i, s := range slots {
		free[i] = TimeSlotResponse(s)
	}
	c.JSON(http.StatusOK, AvailabilityResponse{ResourceID: uri.ID, Date: query.Date, Free: free})
}
