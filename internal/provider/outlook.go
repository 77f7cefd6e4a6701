package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/labkit-dev/calsync/domain"
	syncerrors "github.com/labkit-dev/calsync/errors"
)

var outlookScopes = []string{"offline_access", "User.Read", "Calendars.ReadWrite"}

// OutlookClient talks to the Microsoft Graph calendar API. Graph assigns
// its own event ids, so exports for it go through the stored mapping
// table rather than deterministic ids.
type OutlookClient struct {
	clientID     string
	clientSecret string
	httpClient   *http.Client

	// Overridable in tests; defaults point at the live API.
	GraphBase     string
	TokenEndpoint oauth2.Endpoint
}

func NewOutlookClient(clientID, clientSecret string) *OutlookClient {
	return &OutlookClient{
		clientID:      clientID,
		clientSecret:  clientSecret,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		GraphBase:     "https://graph.microsoft.com/v1.0",
		TokenEndpoint: microsoft.AzureADEndpoint("common"),
	}
}

func (o *OutlookClient) Name() domain.Provider { return domain.ProviderOutlook }

func (o *OutlookClient) SupportsClientIDs() bool { return false }

func (o *OutlookClient) configured() bool { return o.clientID != "" && o.clientSecret != "" }

func (o *OutlookClient) oauthConfig(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     o.clientID,
		ClientSecret: o.clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       outlookScopes,
		Endpoint:     o.TokenEndpoint,
	}
}

func (o *OutlookClient) AuthCodeURL(state, redirectURL string) (string, error) {
	if !o.configured() {
		return "", syncerrors.ErrProviderMisconfigured
	}
	return o.oauthConfig(redirectURL).AuthCodeURL(state,
		oauth2.SetAuthURLParam("response_mode", "query"),
	), nil
}

func (o *OutlookClient) ExchangeCode(ctx context.Context, redirectURL, code string) (*Token, error) {
	if !o.configured() {
		return nil, syncerrors.ErrProviderMisconfigured
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
	tok, err := o.oauthConfig(redirectURL).Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("outlook code exchange failed: %w", err)
	}
	return oauth2ToToken(tok), nil
}

// RefreshToken refreshes the access token. Microsoft rotates refresh
// tokens; the returned token carries the new one when issued.
func (o *OutlookClient) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	if !o.configured() {
		return nil, syncerrors.ErrProviderMisconfigured
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
	src := o.oauthConfig("").TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("outlook token refresh failed: %w", err)
	}
	return oauth2ToToken(tok), nil
}

func (o *OutlookClient) AccountEmail(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.GraphBase+"/me", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch Outlook account info: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", syncerrors.NewProviderAPIError("outlook", "me", resp.StatusCode, string(body))
	}
	var info struct {
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("failed to decode Outlook account info: %w", err)
	}
	if info.Mail != "" {
		return info.Mail, nil
	}
	return info.UserPrincipalName, nil
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphLocation struct {
	DisplayName string `json:"displayName"`
}

type graphEvent struct {
	ID                   string         `json:"id,omitempty"`
	Subject              string         `json:"subject,omitempty"`
	BodyPreview          string         `json:"bodyPreview,omitempty"`
	Body                 *graphBody     `json:"body,omitempty"`
	Location             *graphLocation `json:"location,omitempty"`
	Start                *graphDateTime `json:"start,omitempty"`
	End                  *graphDateTime `json:"end,omitempty"`
	IsAllDay             bool           `json:"isAllDay,omitempty"`
	IsCancelled          bool           `json:"isCancelled,omitempty"`
	WebLink              string         `json:"webLink,omitempty"`
	LastModifiedDateTime string         `json:"lastModifiedDateTime,omitempty"`
}

// ListEvents uses the calendarView endpoint, which expands the window
// server-side. The calendarID parameter is unused: events go to the
// account's default calendar.
func (o *OutlookClient) ListEvents(ctx context.Context, accessToken, _ string, win Window) ([]Event, error) {
	q := url.Values{}
	q.Set("startDateTime", win.Start.UTC().Format(time.RFC3339))
	q.Set("endDateTime", win.End.UTC().Format(time.RFC3339))
	q.Set("$top", strconv.Itoa(500))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.GraphBase+"/me/calendarView?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("outlook event listing failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, syncerrors.NewProviderAPIError("outlook", "list events", resp.StatusCode, string(body))
	}

	var payload struct {
		Value []graphEvent `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode Outlook event list: %w", err)
	}

	events := make([]Event, 0, len(payload.Value))
	for _, item := range payload.Value {
		events = append(events, normalizeGraphEvent(item))
	}
	return events, nil
}

func normalizeGraphEvent(item graphEvent) Event {
	ev := Event{
		ID:          item.ID,
		Summary:     item.Subject,
		Description: item.BodyPreview,
		Cancelled:   item.IsCancelled,
		Link:        item.WebLink,
		UpdatedAt:   item.LastModifiedDateTime,
	}
	if item.Location != nil {
		ev.Location = item.Location.DisplayName
	}
	var start, end string
	if item.Start != nil {
		start = normalizeInstant(item.Start.DateTime)
	}
	if item.End != nil {
		end = normalizeInstant(item.End.DateTime)
	}
	if item.IsAllDay {
		// Graph reports all-day events as midnight instants with an
		// exclusive end; reduce to calendar dates with an inclusive end.
		ev.AllDay = true
		if len(start) >= 10 {
			ev.StartAt = start[:10]
		}
		if len(end) >= 10 {
			ev.EndAt = inclusiveEndDate(ev.StartAt, end[:10])
		}
		return ev
	}
	ev.StartAt = start
	ev.EndAt = end
	return ev
}

func (o *OutlookClient) UpsertEvent(ctx context.Context, accessToken, _, eventID string, payload EventPayload) (*UpsertResult, error) {
	body := graphEvent{
		Subject:  payload.Summary,
		IsAllDay: payload.AllDay,
	}
	if payload.Description != "" {
		body.Body = &graphBody{ContentType: "Text", Content: payload.Description}
	}
	if payload.Location != "" {
		body.Location = &graphLocation{DisplayName: payload.Location}
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
		body.Start = &graphDateTime{DateTime: startDate + "T00:00:00", TimeZone: "UTC"}
		body.End = &graphDateTime{DateTime: exclusiveEndDate(startDate, endDate) + "T00:00:00", TimeZone: "UTC"}
	} else {
		body.Start = &graphDateTime{DateTime: payload.StartAt, TimeZone: "UTC"}
		body.End = &graphDateTime{DateTime: defaultTimedEnd(payload.StartAt, payload.EndAt), TimeZone: "UTC"}
	}

	method := http.MethodPost
	endpoint := o.GraphBase + "/me/events"
	if eventID != "" {
		method = http.MethodPatch
		endpoint = o.GraphBase + "/me/events/" + url.PathEscape(eventID)
	}

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
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("outlook event upsert failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, syncerrors.NewProviderAPIError("outlook", "upsert event", resp.StatusCode, string(respBody))
	}

	var created graphEvent
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("failed to decode Outlook event response: %w", err)
	}
	return &UpsertResult{ID: created.ID, Link: created.WebLink}, nil
}
