package domain

import "time"

// FeedToken maps an opaque URL token to the user whose published
// read-only calendar feed it serves. One token per user; rotating a
// token replaces it.
type FeedToken struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	UserID    string    `bson:"user_id" json:"user_id"`
	Token     string    `bson:"token" json:"token"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
