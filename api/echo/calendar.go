package echo

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/labkit-dev/calsync/domain"
)

func (a *API) redirectURL(p domain.Provider) string {
	if p == domain.ProviderGoogle {
		return a.googleRedirect
	}
	return a.outlookRedirect
}

// SyncHandler exports the user's feed to the provider calendar.
func (a *API) SyncHandler(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	p, err := providerParam(c)
	if err != nil {
		return err
	}

	result, err := a.engine.Export(c.Request().Context(), uid, p)
	if err != nil {
		return errorJSON(c, syncErrorStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"result":  result,
	})
}

// ImportHandler pulls foreign provider events into the local store.
func (a *API) ImportHandler(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	p, err := providerParam(c)
	if err != nil {
		return err
	}

	result, err := a.engine.Import(c.Request().Context(), uid, p)
	if err != nil {
		return errorJSON(c, syncErrorStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"result":  result,
	})
}

// AuthHandler starts the OAuth consent flow with a redirect to the
// provider.
func (a *API) AuthHandler(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	p, err := providerParam(c)
	if err != nil {
		return err
	}

	consentURL, err := a.connects.StartAuth(c.Request().Context(), uid, p, a.redirectURL(p))
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	return c.Redirect(http.StatusFound, consentURL)
}

// CallbackHandler finishes the OAuth flow. Identity comes from the
// stored state, not from a header: the provider redirects the browser
// here directly.
func (a *API) CallbackHandler(c echo.Context) error {
	p, err := providerParam(c)
	if err != nil {
		return err
	}
	state := c.QueryParam("state")
	code := c.QueryParam("code")
	if errParam := c.QueryParam("error"); errParam != "" {
		return errorJSON(c, http.StatusBadRequest, "provider denied access: "+errParam)
	}
	if state == "" || code == "" {
		return errorJSON(c, http.StatusBadRequest, "missing state or code")
	}

	token, err := a.connects.HandleCallback(c.Request().Context(), p, state, code, a.redirectURL(p))
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":       true,
		"provider":      p,
		"account_email": token.AccountEmail,
	})
}

// DisconnectHandler drops the stored credentials and mappings.
func (a *API) DisconnectHandler(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	p, err := providerParam(c)
	if err != nil {
		return err
	}

	if err := a.connects.Disconnect(c.Request().Context(), uid, p); err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// StatusHandler reports the connection state for the provider.
func (a *API) StatusHandler(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	p, err := providerParam(c)
	if err != nil {
		return err
	}

	status, err := a.connects.ConnectionStatus(c.Request().Context(), uid, p)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, status)
}
