package provider_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/labkit-dev/calsync/domain"
	syncerrors "github.com/labkit-dev/calsync/errors"
	"github.com/labkit-dev/calsync/internal/provider"
)

func TestGoogleClient_AuthCodeURL(t *testing.T) {
	g := provider.NewGoogleClient("g-client-id", "g-client-secret")
	u, err := g.AuthCodeURL("state-123", "http://localhost/callback/google")
	require.NoError(t, err)
	assert.Contains(t, u, "client_id=g-client-id")
	assert.Contains(t, u, "state=state-123")
	assert.Contains(t, u, "access_type=offline")
	assert.Contains(t, u, "prompt=consent")
}

func TestGoogleClient_AuthCodeURL_NotConfigured(t *testing.T) {
	g := provider.NewGoogleClient("", "")
	_, err := g.AuthCodeURL("state", "http://localhost/callback")
	assert.ErrorIs(t, err, syncerrors.ErrProviderMisconfigured)
}

func TestGoogleClient_ExchangeCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "auth-code", r.Form.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"access_token": "new-access",
			"refresh_token": "new-refresh",
			"token_type": "Bearer",
			"expires_in": 3599
		}`))
	}))
	defer server.Close()

	g := provider.NewGoogleClient("id", "secret")
	g.TokenEndpoint = oauth2.Endpoint{AuthURL: server.URL + "/auth", TokenURL: server.URL + "/token"}

	tok, err := g.ExchangeCode(context.Background(), "http://localhost/callback", "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "new-access", tok.AccessToken)
	assert.Equal(t, "new-refresh", tok.RefreshToken)
	assert.InDelta(t, 3599, tok.ExpiresIn, 5)
}

func TestGoogleClient_AccountEmail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-abc", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"email": "user@example.com"}`))
	}))
	defer server.Close()

	g := provider.NewGoogleClient("id", "secret")
	g.UserInfoURL = server.URL + "/userinfo"

	email, err := g.AccountEmail(context.Background(), "tok-abc")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", email)
}

func TestGoogleClient_ListEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("singleEvents"))
		assert.Equal(t, "500", r.URL.Query().Get("maxResults"))
		assert.NotEmpty(t, r.URL.Query().Get("timeMin"))
		assert.NotEmpty(t, r.URL.Query().Get("timeMax"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items": [
			{
				"id": "timed1",
				"status": "confirmed",
				"summary": "Standup",
				"start": {"dateTime": "2026-03-01T10:00:00+01:00"},
				"end": {"dateTime": "2026-03-01T10:30:00+01:00"},
				"htmlLink": "https://calendar.google.com/event?eid=timed1"
			},
			{
				"id": "allday1",
				"status": "cancelled",
				"summary": "Conference",
				"start": {"date": "2026-03-10"},
				"end": {"date": "2026-03-13"}
			},
			{
				"id": "single1",
				"summary": "Holiday",
				"start": {"date": "2026-04-01"},
				"end": {"date": "2026-04-02"}
			}
		]}`))
	}))
	defer server.Close()

	g := provider.NewGoogleClient("id", "secret")
	g.APIBase = server.URL

	win := provider.Window{Start: time.Now(), End: time.Now().AddDate(0, 0, 120)}
	events, err := g.ListEvents(context.Background(), "tok", "", win)
	require.NoError(t, err)
	require.Len(t, events, 3)

	timed := events[0]
	assert.Equal(t, "timed1", timed.ID)
	assert.False(t, timed.AllDay)
	assert.False(t, timed.Cancelled)
	assert.Equal(t, "2026-03-01T09:00:00Z", timed.StartAt) // normalized to UTC
	assert.Equal(t, "2026-03-01T09:30:00Z", timed.EndAt)

	allDay := events[1]
	assert.True(t, allDay.AllDay)
	assert.True(t, allDay.Cancelled)
	assert.Equal(t, "2026-03-10", allDay.StartAt)
	assert.Equal(t, "2026-03-12", allDay.EndAt) // exclusive end pulled back one day

	single := events[2]
	assert.True(t, single.AllDay)
	assert.Equal(t, "2026-04-01", single.StartAt)
	assert.Equal(t, "", single.EndAt) // one-day span drops its end
}

func TestGoogleClient_ListEvents_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "invalid_token"}`))
	}))
	defer server.Close()

	g := provider.NewGoogleClient("id", "secret")
	g.APIBase = server.URL

	_, err := g.ListEvents(context.Background(), "bad-tok", "primary", provider.Window{Start: time.Now(), End: time.Now()})
	require.Error(t, err)
	var apiErr *syncerrors.ProviderAPIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestGoogleClient_UpsertEvent_PatchExisting(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Team sync", body["summary"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "abc123", "htmlLink": "https://calendar.google.com/event?eid=abc123"}`))
	}))
	defer server.Close()

	g := provider.NewGoogleClient("id", "secret")
	g.APIBase = server.URL

	res, err := g.UpsertEvent(context.Background(), "tok", "primary", "abc123", provider.EventPayload{
		Summary: "Team sync",
		StartAt: "2026-03-01T10:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/calendars/primary/events/abc123", gotPath)
	assert.Equal(t, "abc123", res.ID)
}

func TestGoogleClient_UpsertEvent_CreateOnMissing(t *testing.T) {
	// First PATCH returns 404, the client retries as POST carrying the id.
	var posted map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "deadbeef"}`))
	}))
	defer server.Close()

	g := provider.NewGoogleClient("id", "secret")
	g.APIBase = server.URL

	res, err := g.UpsertEvent(context.Background(), "tok", "", "deadbeef", provider.EventPayload{
		Summary: "Conference",
		StartAt: "2026-03-10",
		EndAt:   "2026-03-12",
		AllDay:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", res.ID)
	assert.Equal(t, "deadbeef", posted["id"])
	start := posted["start"].(map[string]any)
	end := posted["end"].(map[string]any)
	assert.Equal(t, "2026-03-10", start["date"])
	assert.Equal(t, "2026-03-12", end["date"]) // multi-day inclusive end passes through
}

func TestGoogleClient_UpsertEvent_SingleDayAllDay(t *testing.T) {
	var posted map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "x"}`))
	}))
	defer server.Close()

	g := provider.NewGoogleClient("id", "secret")
	g.APIBase = server.URL

	_, err := g.UpsertEvent(context.Background(), "tok", "primary", "", provider.EventPayload{
		Summary: "Holiday",
		StartAt: "2026-04-01",
		AllDay:  true,
	})
	require.NoError(t, err)
	start := posted["start"].(map[string]any)
	end := posted["end"].(map[string]any)
	assert.Equal(t, "2026-04-01", start["date"])
	assert.Equal(t, "2026-04-02", end["date"]) // single day bumps to exclusive next day
}

func TestGoogleClient_Identity(t *testing.T) {
	g := provider.NewGoogleClient("id", "secret")
	assert.Equal(t, domain.ProviderGoogle, g.Name())
	assert.True(t, g.SupportsClientIDs())
}
