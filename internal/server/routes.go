package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures routes, middleware and the error handler.
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	e.HTTPErrorHandler = JSONErrorHandler()

	if cfg.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := e.Group("/v1", SetNoCacheHeaders)
	v1.GET("/health", h.Health)

	// Every quote may hit the RPC node; cap it per client.
	reads := v1.Group("")
	if cfg.RPS > 0 {
		reads.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(cfg.RPS),
			Burst:     cfg.Burst,
			ExpiresIn: 2 * time.Minute,
		})))
	}
	reads.GET("/pool", h.Pool)
	reads.GET("/quote/swap", h.QuoteSwap)
	reads.GET("/quote/deposit", h.QuoteDeposit)
	reads.GET("/quote/withdraw", h.QuoteWithdraw)

	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
