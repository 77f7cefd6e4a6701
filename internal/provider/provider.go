// Package provider holds the thin HTTP clients for the external
// calendar providers. Each client maps between the canonical feed event
// shape and its provider's wire format; everything above this package is
// provider-agnostic.
package provider

import (
	"context"
	"time"

	"github.com/labkit-dev/calsync/domain"
)

// Token is the result of an OAuth code exchange or refresh.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int // seconds
}

// ExpiresAt converts ExpiresIn to an absolute instant from now.
func (t *Token) ExpiresAt(now time.Time) time.Time {
	return now.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// Window bounds a remote event listing.
type Window struct {
	Start time.Time
	End   time.Time
}

// EventPayload carries a feed event to a provider upsert. StartAt/EndAt
// follow the canonical convention: calendar dates for all-day events
// (inclusive end), RFC 3339 instants otherwise. Clients convert to their
// provider's conventions on the wire.
type EventPayload struct {
	Summary     string
	Description string
	Location    string
	StartAt     string
	EndAt       string
	AllDay      bool
}

// Event is a provider-side event normalized back to the canonical
// convention. All-day events carry calendar dates with inclusive ends; a
// span that collapses to a single day has no EndAt at all.
type Event struct {
	ID          string
	Summary     string
	Description string
	Location    string
	StartAt     string
	EndAt       string
	AllDay      bool
	Cancelled   bool
	Link        string
	UpdatedAt   string
}

// UpsertResult is the provider's answer to an event upsert.
type UpsertResult struct {
	ID   string
	Link string
}

// Client is the per-provider integration surface. Implementing it (and
// registering the provider in domain.KnownProviders) is the extension
// point for adding a third provider.
type Client interface {
	Name() domain.Provider

	// SupportsClientIDs reports whether the provider accepts
	// caller-supplied event ids, which selects the identity-mapping
	// strategy used for it.
	SupportsClientIDs() bool

	AuthCodeURL(state, redirectURL string) (string, error)
	ExchangeCode(ctx context.Context, redirectURL, code string) (*Token, error)
	RefreshToken(ctx context.Context, refreshToken string) (*Token, error)
	AccountEmail(ctx context.Context, accessToken string) (string, error)

	ListEvents(ctx context.Context, accessToken, calendarID string, win Window) ([]Event, error)

	// UpsertEvent creates or updates a provider event. A non-empty
	// eventID updates (or, for providers with caller-supplied ids,
	// creates under) that id; an empty eventID creates a
	// provider-assigned event.
	UpsertEvent(ctx context.Context, accessToken, calendarID, eventID string, payload EventPayload) (*UpsertResult, error)
}

const dateLayout = "2006-01-02"

// exclusiveEndDate converts the canonical inclusive all-day span to the
// exclusive end-date convention providers use on the wire. A missing end
// or an end equal to start becomes start plus one calendar day.
func exclusiveEndDate(startDate, endDate string) string {
	if endDate == "" || endDate == startDate {
		d, err := time.Parse(dateLayout, startDate)
		if err != nil {
			return startDate
		}
		return d.AddDate(0, 0, 1).Format(dateLayout)
	}
	return endDate
}

// inclusiveEndDate converts a provider's exclusive all-day end date back
// to the canonical inclusive convention. A span collapsing to a single
// day drops the end entirely.
func inclusiveEndDate(startDate, exclusiveEnd string) string {
	if exclusiveEnd == "" {
		return ""
	}
	d, err := time.Parse(dateLayout, exclusiveEnd)
	if err != nil {
		return ""
	}
	inclusive := d.AddDate(0, 0, -1).Format(dateLayout)
	if inclusive <= startDate {
		return ""
	}
	return inclusive
}

// defaultTimedEnd returns end when set, else start plus one hour. Timed
// provider events require an end instant.
func defaultTimedEnd(startAt, endAt string) string {
	if endAt != "" {
		return endAt
	}
	t, err := time.Parse(time.RFC3339, startAt)
	if err != nil {
		return startAt
	}
	return t.Add(time.Hour).UTC().Format(time.RFC3339)
}

// normalizeInstant parses any RFC 3339-ish instant and reformats it as a
// canonical UTC RFC 3339 string. Returns "" when unparseable.
func normalizeInstant(s string) string {
	if s == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.9999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return ""
}
