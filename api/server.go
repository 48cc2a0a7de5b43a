package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"solarcycle.GO/core/app"
	"solarcycle.GO/core/auth"
	"solarcycle.GO/core/monitor"
)

// NewServer builds the echo instance with every registered module applied.
func NewServer(a *app.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = NewValidator()
	e.HTTPErrorHandler = HTTPErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.Decompress())
	e.Use(middleware.Gzip())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			c.Response().Before(func() {
				duration := time.Since(start).Milliseconds()
				c.Response().Header().Set("X-Request-Duration-ms", strconv.FormatInt(duration, 10))
			})
			return next(c)
		}
	})
	e.Use(monitor.EchoMiddleware())

	e.GET("/health", func(c echo.Context) error {
		status := echo.Map{"status": "ok", "ledger": a.Ledger.Enabled()}
		if sqlDB, err := a.DB.DB(); err != nil || sqlDB.PingContext(c.Request().Context()) != nil {
			status["status"] = "degraded"
			return c.JSON(http.StatusServiceUnavailable, status)
		}
		return c.JSON(http.StatusOK, status)
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiGroup := e.Group("/api")
	apiGroup.Use(auth.Middleware(a.Config.API))
	ApplyModules(apiGroup, a)
	ApplyRoutes(e, a)
	return e
}
