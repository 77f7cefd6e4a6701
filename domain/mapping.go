package domain

import "time"

// EventMapping records the provider-side event id created for a feed
// event, for providers that do not accept caller-supplied ids. Created
// on first successful export, read on every subsequent export and
// import pass, deleted only on full disconnect.
type EventMapping struct {
	ID              string    `bson:"_id,omitempty" json:"id"`
	UserID          string    `bson:"user_id" json:"user_id"`
	Provider        Provider  `bson:"provider" json:"provider"`
	SourceUID       string    `bson:"source_uid" json:"source_uid"`
	ProviderEventID string    `bson:"provider_event_id" json:"provider_event_id"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at" json:"updated_at"`
}
