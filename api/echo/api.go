// Package echo exposes the engine over HTTP. Handlers stay thin: parse,
// delegate, map errors to status codes, serialize.
package echo

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/labkit-dev/calsync/domain"
	syncerrors "github.com/labkit-dev/calsync/errors"
	"github.com/labkit-dev/calsync/internal/connect"
	"github.com/labkit-dev/calsync/internal/feed"
	"github.com/labkit-dev/calsync/internal/scheduler"
	syncengine "github.com/labkit-dev/calsync/internal/sync"
	"github.com/labkit-dev/calsync/log"
)

// API holds the handler dependencies.
type API struct {
	engine     *syncengine.Engine
	connects   *connect.Service
	renderer   *feed.ICSRenderer
	runner     *scheduler.Runner
	scanner    *scheduler.Scanner
	jobs       domain.OperatorJobRepository
	feedTokens domain.FeedTokenRepository

	publicBaseURL   string
	googleRedirect  string
	outlookRedirect string

	logger log.Logger
	health func(echo.Context) error
}

type Config struct {
	PublicBaseURL   string
	GoogleRedirect  string
	OutlookRedirect string
	// Health is called by GET /healthz; an error reports 503.
	Health func(echo.Context) error
}

func NewAPI(
	engine *syncengine.Engine,
	connects *connect.Service,
	renderer *feed.ICSRenderer,
	runner *scheduler.Runner,
	scanner *scheduler.Scanner,
	jobs domain.OperatorJobRepository,
	feedTokens domain.FeedTokenRepository,
	logger log.Logger,
	cfg Config,
) *API {
	return &API{
		engine:          engine,
		connects:        connects,
		renderer:        renderer,
		runner:          runner,
		scanner:         scanner,
		jobs:            jobs,
		feedTokens:      feedTokens,
		publicBaseURL:   cfg.PublicBaseURL,
		googleRedirect:  cfg.GoogleRedirect,
		outlookRedirect: cfg.OutlookRedirect,
		logger:          logger,
		health:          cfg.Health,
	}
}

// RegisterRoutes registers every HTTP route.
func (a *API) RegisterRoutes(e *echo.Echo) {
	e.POST("/calendar/:provider/sync", a.SyncHandler)
	e.POST("/calendar/:provider/import", a.ImportHandler)
	e.GET("/calendar/:provider/auth", a.AuthHandler)
	e.GET("/calendar/:provider/callback", a.CallbackHandler)
	e.POST("/calendar/:provider/disconnect", a.DisconnectHandler)
	e.GET("/calendar/:provider/status", a.StatusHandler)

	e.GET("/feed/:token", a.FeedHandler)
	e.POST("/feed/token", a.RotateFeedTokenHandler)

	e.GET("/operator/jobs", a.ListJobsHandler)
	e.POST("/operator/jobs", a.CreateJobHandler)
	e.PATCH("/operator/jobs/:id", a.UpdateJobHandler)
	e.DELETE("/operator/jobs/:id", a.DeleteJobHandler)
	e.POST("/operator/jobs/:id/run", a.RunJobHandler)
	e.POST("/operator/jobs/run-due", a.RunDueHandler)

	e.GET("/healthz", a.HealthHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// userID pulls the caller identity from the X-User-ID header. Session
// auth sits in front of this service and stays out of scope here.
func userID(c echo.Context) (string, error) {
	id := c.Request().Header.Get("X-User-ID")
	if id == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "missing X-User-ID header")
	}
	return id, nil
}

func providerParam(c echo.Context) (domain.Provider, error) {
	p := domain.Provider(c.Param("provider"))
	if !p.Valid() {
		return "", echo.NewHTTPError(http.StatusNotFound, "unknown provider")
	}
	return p, nil
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

// syncErrorStatus maps engine errors to HTTP statuses. Configuration
// mistakes are the client's problem; everything else is ours.
func syncErrorStatus(err error) int {
	var refreshErr *syncerrors.TokenRefreshError
	switch {
	case errors.Is(err, syncerrors.ErrSyncInProgress):
		return http.StatusConflict
	case errors.Is(err, syncerrors.ErrNotConnected),
		errors.Is(err, syncerrors.ErrProviderMisconfigured):
		return http.StatusBadRequest
	case errors.As(err, &refreshErr):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) HealthHandler(c echo.Context) error {
	if a.health != nil {
		if err := a.health(c); err != nil {
			return errorJSON(c, http.StatusServiceUnavailable, err.Error())
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
