package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	googleoauth2 "golang.org/x/oauth2/google"

	"github.com/labkit-dev/calsync/domain"
	syncerrors "github.com/labkit-dev/calsync/errors"
)

const googleCalendarScope = "https://www.googleapis.com/auth/calendar"

// GoogleClient talks to the Google Calendar API. Google accepts
// caller-supplied event ids (charset a-v0-9), so exports address events
// by deterministic id and no mapping table is needed.
type GoogleClient struct {
	clientID     string
	clientSecret string
	httpClient   *http.Client

	// Overridable in tests; defaults point at the live API.
	APIBase       string
	UserInfoURL   string
	TokenEndpoint oauth2.Endpoint
}

func NewGoogleClient(clientID, clientSecret string) *GoogleClient {
	return &GoogleClient{
		clientID:      clientID,
		clientSecret:  clientSecret,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		APIBase:       "https://www.googleapis.com/calendar/v3",
		UserInfoURL:   "https://www.googleapis.com/oauth2/v2/userinfo",
		TokenEndpoint: googleoauth2.Endpoint,
	}
}

func (g *GoogleClient) Name() domain.Provider { return domain.ProviderGoogle }

func (g *GoogleClient) SupportsClientIDs() bool { return true }

func (g *GoogleClient) configured() bool { return g.clientID != "" && g.clientSecret != "" }

func (g *GoogleClient) oauthConfig(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     g.clientID,
		ClientSecret: g.clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{googleCalendarScope},
		Endpoint:     g.TokenEndpoint,
	}
}

func (g *GoogleClient) AuthCodeURL(state, redirectURL string) (string, error) {
	if !g.configured() {
		return "", syncerrors.ErrProviderMisconfigured
	}
	return g.oauthConfig(redirectURL).AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	), nil
}

func (g *GoogleClient) ExchangeCode(ctx context.Context, redirectURL, code string) (*Token, error) {
	if !g.configured() {
		return nil, syncerrors.ErrProviderMisconfigured
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	tok, err := g.oauthConfig(redirectURL).Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google code exchange failed: %w", err)
	}
	return oauth2ToToken(tok), nil
}

func (g *GoogleClient) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	if !g.configured() {
		return nil, syncerrors.ErrProviderMisconfigured
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	src := g.oauthConfig("").TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("google token refresh failed: %w", err)
	}
	return oauth2ToToken(tok), nil
}

func (g *GoogleClient) AccountEmail(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.UserInfoURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch Google account info: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", syncerrors.NewProviderAPIError("google", "userinfo", resp.StatusCode, string(body))
	}
	var info struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("failed to decode Google account info: %w", err)
	}
	return info.Email, nil
}

// googleEventTime is the {date|dateTime} pair Google uses for event bounds.
type googleEventTime struct {
	Date     string `json:"date,omitempty"`
	DateTime string `json:"dateTime,omitempty"`
}

type googleEvent struct {
	ID          string           `json:"id,omitempty"`
	Status      string           `json:"status,omitempty"`
	Summary     string           `json:"summary,omitempty"`
	Description string           `json:"description,omitempty"`
	Location    string           `json:"location,omitempty"`
	Start       *googleEventTime `json:"start,omitempty"`
	End         *googleEventTime `json:"end,omitempty"`
	HTMLLink    string           `json:"htmlLink,omitempty"`
	Updated     string           `json:"updated,omitempty"`
}

func (g *GoogleClient) ListEvents(ctx context.Context, accessToken, calendarID string, win Window) ([]Event, error) {
	if calendarID == "" {
		calendarID = "primary"
	}
	q := url.Values{}
	q.Set("timeMin", win.Start.UTC().Format(time.RFC3339))
	q.Set("timeMax", win.End.UTC().Format(time.RFC3339))
	q.Set("singleEvents", "true")
	q.Set("maxResults", strconv.Itoa(500))

	endpoint := fmt.Sprintf("%s/calendars/%s/events?%s", g.APIBase, url.PathEscape(calendarID), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google event listing failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, syncerrors.NewProviderAPIError("google", "list events", resp.StatusCode, string(body))
	}

	var payload struct {
		Items []googleEvent `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode Google event list: %w", err)
	}

	events := make([]Event, 0, len(payload.Items))
	for _, item := range payload.Items {
		events = append(events, normalizeGoogleEvent(item))
	}
	return events, nil
}

func normalizeGoogleEvent(item googleEvent) Event {
	ev := Event{
		ID:          item.ID,
		Summary:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Cancelled:   item.Status == "cancelled",
		Link:        item.HTMLLink,
		UpdatedAt:   item.Updated,
	}
	if item.Start == nil {
		return ev
	}
	// A bare date with no dateTime marks an all-day event.
	if item.Start.Date != "" && item.Start.DateTime == "" {
		ev.AllDay = true
		ev.StartAt = item.Start.Date
		if item.End != nil {
			ev.EndAt = inclusiveEndDate(item.Start.Date, item.End.Date)
		}
		return ev
	}
	ev.StartAt = normalizeInstant(item.Start.DateTime)
	if item.End != nil {
		ev.EndAt = normalizeInstant(item.End.DateTime)
	}
	return ev
}

func (g *GoogleClient) UpsertEvent(ctx context.Context, accessToken, calendarID, eventID string, payload EventPayload) (*UpsertResult, error) {
	if calendarID == "" {
		calendarID = "primary"
	}
	body := googleEvent{
		Summary:     payload.Summary,
		Description: payload.Description,
		Location:    payload.Location,
	}
	if payload.AllDay {
		startDate := payload.StartAt
		if len(startDate) > 10 {
			startDate = startDate[:10]
		}
		endDate := payload.EndAt
		if len(endDate) > 10 {
			endDate = endDate[:10]
		}
		body.Start = &googleEventTime{Date: startDate}
		body.End = &googleEventTime{Date: exclusiveEndDate(startDate, endDate)}
	} else {
		body.Start = &googleEventTime{DateTime: payload.StartAt}
		body.End = &googleEventTime{DateTime: defaultTimedEnd(payload.StartAt, payload.EndAt)}
	}

	// Blind upsert against the caller-supplied id: PATCH first, fall back
	// to POST carrying the same id when the event does not exist yet.
	if eventID != "" {
		result, err := g.doEvent(ctx, accessToken, http.MethodPatch,
			fmt.Sprintf("%s/calendars/%s/events/%s", g.APIBase, url.PathEscape(calendarID), url.PathEscape(eventID)),
			body)
		if err == nil {
			return result, nil
		}
		var apiErr *syncerrors.ProviderAPIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
			return nil, err
		}
		body.ID = eventID
	}
	return g.doEvent(ctx, accessToken, http.MethodPost,
		fmt.Sprintf("%s/calendars/%s/events", g.APIBase, url.PathEscape(calendarID)),
		body)
}

func (g *GoogleClient) doEvent(ctx context.Context, accessToken, method, endpoint string, body googleEvent) (*UpsertResult, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google event upsert failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, syncerrors.NewProviderAPIError("google", "upsert event", resp.StatusCode, string(respBody))
	}

	var created googleEvent
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("failed to decode Google event response: %w", err)
	}
	return &UpsertResult{ID: created.ID, Link: created.HTMLLink}, nil
}

func oauth2ToToken(tok *oauth2.Token) *Token {
	expiresIn := int(time.Until(tok.Expiry).Seconds())
	if tok.Expiry.IsZero() {
		expiresIn = 3600
	}
	return &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    expiresIn,
	}
}
