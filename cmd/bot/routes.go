package main

import (
	"callbridge/internal/httpapi"
	"callbridge/internal/telegram"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, webhook *telegram.Webhook, ops *httpapi.Handler) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Telegram delivers updates here; the token path segment is the guard.
	r.POST("/webhook/:token", webhook.Handle)

	// Read-only operator API, mounted only when configured.
	if ops != nil {
		ops.Register(r)
	}
}
