// Package feed assembles a user's schedulable feed from the internal
// sources and renders it as an iCalendar document.
package feed

import (
	"context"
	"sort"

	"github.com/labkit-dev/calsync/domain"
	"github.com/labkit-dev/calsync/log"
)

// Builder merges every registered FeedSource into one sorted feed.
type Builder struct {
	sources []domain.FeedSource
	logger  log.Logger
}

func NewBuilder(logger log.Logger, sources ...domain.FeedSource) *Builder {
	return &Builder{sources: sources, logger: logger}
}

// Build collects events from all sources sequentially. A failing source
// is logged and skipped so one broken collection never takes the whole
// feed down. No deduplication happens across sources: UIDs are
// namespaced by source kind and cannot collide.
//
// The result is sorted by StartAt ascending. The values are ISO-8601
// strings, so byte order is chronological order; date-only all-day
// values sort before timed instants on the same day, which is the
// wanted order anyway.
func (b *Builder) Build(ctx context.Context, userID string) []domain.FeedEvent {
	var events []domain.FeedEvent
	for _, src := range b.sources {
		items, err := src.ListSchedulable(ctx, userID)
		if err != nil {
			b.logger.Warn(ctx, "feed source failed, skipping", map[string]any{
				"source":  string(src.Kind()),
				"user_id": userID,
				"error":   err.Error(),
			})
			continue
		}
		events = append(events, items...)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].StartAt < events[j].StartAt
	})
	return events
}
