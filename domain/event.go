package domain

import "time"

// Calendar event lifecycle states.
const (
	EventStatusScheduled = "scheduled"
	EventStatusCancelled = "cancelled"
)

// Source types for calendar_events documents. Native rows are created by
// the user; the *_external types mark rows the import engine owns.
const (
	EventSourceNative          = "native"
	EventSourceGoogleExternal  = "google_external"
	EventSourceOutlookExternal = "outlook_external"
)

// CalendarEvent is a stored calendar event. It backs the "native" feed
// source and is also the landing record for imported provider events,
// keyed by (UserID, SourceType, SourceID).
type CalendarEvent struct {
	ID          string         `bson:"_id,omitempty" json:"id"`
	UserID      string         `bson:"user_id" json:"user_id"`
	Title       string         `bson:"title" json:"title"`
	Description string         `bson:"description,omitempty" json:"description,omitempty"`
	Location    string         `bson:"location,omitempty" json:"location,omitempty"`
	StartAt     string         `bson:"start_at" json:"start_at"`
	EndAt       string         `bson:"end_at,omitempty" json:"end_at,omitempty"`
	AllDay      bool           `bson:"all_day" json:"all_day"`
	Status      string         `bson:"status" json:"status"`
	Category    string         `bson:"category,omitempty" json:"category,omitempty"`
	SourceType  string         `bson:"source_type" json:"source_type"`
	SourceID    string         `bson:"source_id,omitempty" json:"source_id,omitempty"`
	SourceLabel string         `bson:"source_label,omitempty" json:"source_label,omitempty"`
	Metadata    map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt   time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `bson:"updated_at" json:"updated_at"`
}

// ExternalSourceType returns the calendar_events source_type used for
// rows imported from the given provider.
func ExternalSourceType(p Provider) string {
	return string(p) + "_external"
}
