package main

import (
	"callboard/internal/httpapi"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Provider webhook (public).
	// NOTE: should be protected by a webhook secret check in production.
	r.POST("/vapi-webhook", h.Webhook)

	// Dashboard API. The demo frontend calls these directly; there is no
	// auth layer by design.
	r.POST("/start-call", h.StartCall)
	r.POST("/start-batch", h.StartBatch)
	r.GET("/calls", h.ListCalls)
	r.GET("/call/:id", h.GetCall)
}
