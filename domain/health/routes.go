package health

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers health routes. They stay outside the auth
// middleware so probes need no credentials.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.GET("/healthz", h.Live)
	e.GET("/health", h.Ready)
}
