package domain

import (
	"context"
	"fmt"
)

// SourceKind names the internal record type a FeedEvent was projected from.
type SourceKind string

const (
	SourceNative    SourceKind = "native"    // user-created calendar events (incl. imported external ones)
	SourcePlanner   SourceKind = "planner"   // planned experiments, all-day spans
	SourceMilestone SourceKind = "milestone" // experiment timepoints, timed
	SourceProtocol  SourceKind = "protocol"  // scheduled protocol runs, all-day
)

// FeedEvent is the canonical, provider-agnostic representation of one
// schedulable item. FeedEvents are a view: they are recomputed from the
// source collections on every sync cycle and never persisted themselves.
//
// StartAt and EndAt are ISO-8601 strings. All-day events carry calendar
// dates ("2006-01-02"); timed events carry RFC 3339 instants. End dates
// are inclusive here; conversion to a provider's exclusive convention
// happens at the provider boundary.
type FeedEvent struct {
	UID         string
	SourceKind  SourceKind
	SourceID    string
	Summary     string
	Description string
	Location    string
	StartAt     string
	EndAt       string
	AllDay      bool

	// NativeEventID is set only for SourceNative rows and carries the
	// calendar_events document id, used to write back provider linkage.
	NativeEventID string

	// NativeMetadata mirrors the source row's metadata map for
	// SourceNative rows; nil otherwise.
	NativeMetadata map[string]any
}

// FeedUID derives the stable feed identifier for a source row. It changes
// if and only if the row identity changes, never on content edits.
func FeedUID(kind SourceKind, sourceID string) string {
	return fmt.Sprintf("%s-%s", kind, sourceID)
}

// FeedSource is one internal record type that contributes schedulable
// events to a user's feed.
type FeedSource interface {
	Kind() SourceKind
	ListSchedulable(ctx context.Context, userID string) ([]FeedEvent, error)
}
