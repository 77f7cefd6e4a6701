package echo

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/labkit-dev/calsync/domain"
)

// FeedHandler serves the published read-only calendar feed. The token in
// the URL is the only credential; anyone holding the link can read the
// feed, which is the usual calendar-subscription trade-off.
func (a *API) FeedHandler(c echo.Context) error {
	token := strings.TrimSuffix(c.Param("token"), ".ics")
	if token == "" {
		return errorJSON(c, http.StatusNotFound, "feed not found")
	}

	ft, err := a.feedTokens.GetByToken(c.Request().Context(), token)
	if errors.Is(err, domain.ErrFeedTokenNotFound) {
		return errorJSON(c, http.StatusNotFound, "feed not found")
	}
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	doc, err := a.renderer.Render(c.Request().Context(), ft.UserID)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	c.Response().Header().Set("Cache-Control", "public, max-age=300")
	return c.Blob(http.StatusOK, "text/calendar; charset=utf-8", []byte(doc))
}

// RotateFeedTokenHandler issues (or replaces) the user's feed token and
// returns the subscription URL. Rotation invalidates the previous URL
// immediately.
func (a *API) RotateFeedTokenHandler(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	token := uuid.NewString()
	ft, err := a.feedTokens.Replace(c.Request().Context(), uid, token)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	a.renderer.Invalidate(uid)

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"url":     a.publicBaseURL + "/feed/" + ft.Token + ".ics",
	})
}
