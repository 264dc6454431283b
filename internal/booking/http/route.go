package http

import (
	"github.com/gin-gonic/gin"
)

// Middlewares groups the gin handlers the booking routes are guarded with.
type Middlewares struct {
	AuthRequired gin.HandlerFunc
	OptionalAuth gin.HandlerFunc
	CreateLimit  gin.HandlerFunc
}

func RegisterRoutes(g *gin.RouterGroup, h *Handler, mw Middlewares) {
	group := g.Group("/bookings")

	// === Guest or User Routes ===
	group.POST("", mw.OptionalAuth, mw.CreateLimit, h.Create)
	group.GET("/:id", mw.OptionalAuth, h.Get)
	group.PATCH("/:id", mw.OptionalAuth, h.Update)
	group.POST("/:id/cancel", mw.OptionalAuth, h.Cancel)
	group.POST("/:id/refund", mw.OptionalAuth, h.Refund)

	// === Authenticated Routes ===
	group.GET("", mw.AuthRequired, h.ListMine)
	group.POST("/:id/confirm", mw.AuthRequired, h.Confirm)

	// === Resource-scoped Routes ===
	resources := g.Group("/resources/:id")
	resources.GET("/availability", h.Availability)
	resources.GET("/bookings", mw.AuthRequired, h.ListForResource)
}
