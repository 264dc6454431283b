package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers resource-related routes.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware gin.HandlerFunc) {
	group := g.Group("/resources")

	// === Public Routes ===
	group.GET("", h.List)    // List resources
	group.GET("/:id", h.Get) // Get resource details

	// === Authenticated Routes ===
	group.POST("", authMiddleware, h.Create)      // Create resource (caller becomes host)
	group.PATCH("/:id", authMiddleware, h.Update) // Update resource (host or admin)
}
