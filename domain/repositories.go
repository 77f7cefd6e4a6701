package domain

import (
	"context"
	"errors"
	"time"
)

// Not-found sentinels returned by repository implementations.
var (
	ErrMappingNotFound   = errors.New("event mapping not found")
	ErrEventNotFound     = errors.New("calendar event not found")
	ErrJobNotFound       = errors.New("operator job not found")
	ErrFeedTokenNotFound = errors.New("feed token not found")
)

// ProviderTokenRepository persists OAuth credentials per (user, provider).
type ProviderTokenRepository interface {
	Upsert(ctx context.Context, token *ProviderToken) error
	Get(ctx context.Context, userID string, provider Provider) (*ProviderToken, error)
	UpdateCredentials(ctx context.Context, userID string, provider Provider, accessToken, refreshToken string, expiresAt time.Time) error
	Delete(ctx context.Context, userID string, provider Provider) error
}

// EventMappingRepository persists provider event ids for providers that
// assign their own ids.
type EventMappingRepository interface {
	Upsert(ctx context.Context, mapping *EventMapping) error
	Get(ctx context.Context, userID string, provider Provider, sourceUID string) (*EventMapping, error)
	ListByUser(ctx context.Context, userID string, provider Provider) ([]*EventMapping, error)
	DeleteByUser(ctx context.Context, userID string, provider Provider) error
}

// CalendarEventRepository stores native and imported calendar events.
type CalendarEventRepository interface {
	Create(ctx context.Context, event *CalendarEvent) error
	Update(ctx context.Context, event *CalendarEvent) error
	GetBySource(ctx context.Context, userID, sourceType, sourceID string) (*CalendarEvent, error)
	ListByUser(ctx context.Context, userID string) ([]*CalendarEvent, error)
	CountBySource(ctx context.Context, userID, sourceType string) (int64, error)
}

// OperatorJobRepository stores recurring automation jobs.
type OperatorJobRepository interface {
	Create(ctx context.Context, job *OperatorJob) error
	Get(ctx context.Context, userID, id string) (*OperatorJob, error)
	Update(ctx context.Context, job *OperatorJob) error
	Delete(ctx context.Context, userID, id string) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*OperatorJob, error)
}

// FeedTokenRepository stores published-feed URL tokens.
type FeedTokenRepository interface {
	GetByToken(ctx context.Context, token string) (*FeedToken, error)
	GetByUser(ctx context.Context, userID string) (*FeedToken, error)
	Replace(ctx context.Context, userID, token string) (*FeedToken, error)
}
