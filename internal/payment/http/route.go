package http

import "github.com/gin-gonic/gin"

func RegisterRoutes(g *gin.RouterGroup, h *Handler) {
	group := g.Group("/payments")

	// === Gateway Callbacks ===
	group.POST("/webhook", h.Webhook)
}
