package devserver

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter wires the stub backend's routes.
func SetupRouter(e *echo.Echo, h *Handler) {
	e.GET("/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/v1")
	v1.GET("/conversations/:id/messages", h.GetMessages)  // GET  /v1/conversations/:id/messages
	v1.POST("/conversations/:id/messages", h.PostMessage) // POST /v1/conversations/:id/messages
	v1.PUT("/conversations/:id/read", h.MarkRead)         // PUT  /v1/conversations/:id/read
	v1.GET("/transactions", h.ListTransactions)           // GET  /v1/transactions?archived=
	v1.GET("/dev/token", h.DevToken)                      // GET  /v1/dev/token?uid=

	e.GET("/ws/conversations/:id", h.HandleWebSocket)
}
