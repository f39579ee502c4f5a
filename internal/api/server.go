// internal/api/server.go
package api

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"support-drafts/internal/common/config"
	"support-drafts/internal/common/logger"
)

// NewServer wires routes and middleware, outermost first: recovery, request
// id, access log, rate limit.
func NewServer(h *Handler, cfg config.ServerConfig, log logger.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(AccessLog(log.With(map[string]interface{}{"component": "http"})))

	e.GET("/health", h.Health)
	e.GET("/ready", h.Ready)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/api/v1")
	if cfg.RateLimit.Enabled {
		v1.Use(NewIPRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst).Middleware())
	}
	v1.POST("/drafts", h.CreateDraft)
	v1.POST("/screenings", h.Screen)

	return e
}
