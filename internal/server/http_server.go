// Package server assembles the HTTP server around the echo surface.
package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	calsyncecho "github.com/labkit-dev/calsync/api/echo"
	"github.com/labkit-dev/calsync/config"
	"github.com/labkit-dev/calsync/log"
)

// NewHTTPServer builds the echo router with recovery, request logging
// and tracing middleware, registers the API routes, and wraps it in an
// http.Server with sane timeouts.
func NewHTTPServer(cfg *config.ServerConfig, appLogger log.Logger, api *calsyncecho.API) *http.Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(otelecho.Middleware(cfg.OtelServiceName))
	e.Use(requestLogger(appLogger))

	api.RegisterRoutes(e)

	return &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      e,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// requestLogger logs one line per request through the application
// logger, carrying method, path, status and latency.
func requestLogger(appLogger log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			fields := map[string]any{
				"method":     req.Method,
				"path":       req.URL.Path,
				"status":     c.Response().Status,
				"latency":    time.Since(start).String(),
				"ip":         c.RealIP(),
				"user_agent": req.UserAgent(),
			}
			if err != nil {
				appLogger.Error(req.Context(), "HTTP request failed", err, fields)
			} else {
				appLogger.Info(req.Context(), "HTTP request", fields)
			}
			return nil
		}
	}
}
