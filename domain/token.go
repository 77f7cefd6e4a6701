package domain

import "time"

// ProviderToken holds the OAuth credentials for one (user, provider)
// connection. It is mutated only by token refresh and deleted on
// disconnect.
type ProviderToken struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	UserID       string    `bson:"user_id" json:"user_id"`
	Provider     Provider  `bson:"provider" json:"provider"`
	AccessToken  string    `bson:"access_token" json:"-"`
	RefreshToken string    `bson:"refresh_token" json:"-"`
	ExpiresAt    time.Time `bson:"expires_at" json:"expires_at"`
	AccountEmail string    `bson:"account_email,omitempty" json:"account_email,omitempty"`
	// CalendarID is the provider-side calendar handle events are written
	// to. Google defaults to "primary"; Outlook uses the account default
	// calendar and leaves this empty.
	CalendarID string    `bson:"calendar_id,omitempty" json:"calendar_id,omitempty"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at" json:"updated_at"`
}

// ExpiresWithin reports whether the access token expires before
// now+skew and should be refreshed before use.
func (t *ProviderToken) ExpiresWithin(now time.Time, skew time.Duration) bool {
	return t.ExpiresAt.Before(now.Add(skew))
}
