package feed

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/emersion/go-ical"
	"github.com/jellydator/ttlcache/v3"

	"github.com/labkit-dev/calsync/domain"
)

const (
	icsProductID = "-//labkit//calsync//EN"
	icsUIDSuffix = "@calsync"

	// Feed consumers poll aggressively; rendered documents are cached
	// briefly to keep repeated fetches off the database.
	icsCacheTTL = 5 * time.Minute
)

// ICSRenderer renders a user's feed as an iCalendar document, memoized
// per user with a short TTL.
type ICSRenderer struct {
	builder *Builder
	cache   *ttlcache.Cache[string, string]
	now     func() time.Time
}

func NewICSRenderer(builder *Builder) *ICSRenderer {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, string](icsCacheTTL),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go cache.Start()

	return &ICSRenderer{
		builder: builder,
		cache:   cache,
		now:     time.Now,
	}
}

// Render returns the user's feed serialized as text/calendar. Cached
// output is served as-is until the TTL lapses; feed edits can take up to
// icsCacheTTL to become visible to subscribers.
func (r *ICSRenderer) Render(ctx context.Context, userID string) (string, error) {
	if item := r.cache.Get(userID); item != nil {
		return item.Value(), nil
	}
	events := r.builder.Build(ctx, userID)
	doc, err := r.encode(events)
	if err != nil {
		return "", err
	}
	r.cache.Set(userID, doc, ttlcache.DefaultTTL)
	return doc, nil
}

// Invalidate drops the cached document so the next Render rebuilds it.
func (r *ICSRenderer) Invalidate(userID string) {
	r.cache.Delete(userID)
}

// Close stops the cache cleanup goroutine.
func (r *ICSRenderer) Close() {
	r.cache.Stop()
}

func (r *ICSRenderer) encode(events []domain.FeedEvent) (string, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, icsProductID)
	cal.Props.SetText(ical.PropVersion, "2.0")

	stamp := r.now().UTC()
	for _, ev := range events {
		comp, err := encodeEvent(ev, stamp)
		if err != nil {
			return "", err
		}
		cal.Children = append(cal.Children, comp)
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", fmt.Errorf("failed to encode calendar: %w", err)
	}
	return buf.String(), nil
}

func encodeEvent(ev domain.FeedEvent, stamp time.Time) (*ical.Component, error) {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, ev.UID+icsUIDSuffix)
	event.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
	event.Props.SetText(ical.PropSummary, ev.Summary)
	if ev.Description != "" {
		event.Props.SetText(ical.PropDescription, ev.Description)
	}
	if ev.Location != "" {
		event.Props.SetText(ical.PropLocation, ev.Location)
	}

	if ev.AllDay {
		start, err := time.Parse("2006-01-02", ev.StartAt)
		if err != nil {
			return nil, fmt.Errorf("event %s has malformed start date %q", ev.UID, ev.StartAt)
		}
		// VALUE=DATE with the exclusive end convention iCalendar uses.
		end := start.AddDate(0, 0, 1)
		if ev.EndAt != "" {
			inclusive, err := time.Parse("2006-01-02", ev.EndAt)
			if err != nil {
				return nil, fmt.Errorf("event %s has malformed end date %q", ev.UID, ev.EndAt)
			}
			end = inclusive.AddDate(0, 0, 1)
		}
		setDateProp(event.Props, ical.PropDateTimeStart, start)
		setDateProp(event.Props, ical.PropDateTimeEnd, end)
		return event.Component, nil
	}

	start, err := time.Parse(time.RFC3339, ev.StartAt)
	if err != nil {
		return nil, fmt.Errorf("event %s has malformed start instant %q", ev.UID, ev.StartAt)
	}
	event.Props.SetDateTime(ical.PropDateTimeStart, start.UTC())
	if ev.EndAt != "" {
		end, err := time.Parse(time.RFC3339, ev.EndAt)
		if err != nil {
			return nil, fmt.Errorf("event %s has malformed end instant %q", ev.UID, ev.EndAt)
		}
		event.Props.SetDateTime(ical.PropDateTimeEnd, end.UTC())
	}
	return event.Component, nil
}

func setDateProp(props ical.Props, name string, t time.Time) {
	p := ical.NewProp(name)
	p.SetValueType(ical.ValueDate)
	p.Value = t.Format("20060102")
	props.Set(p)
}
