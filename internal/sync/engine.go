// Package sync runs the two reconciliation directions: exporting the
// internal feed to a connected provider calendar and importing foreign
// provider events back. Both directions serialize per (user, provider)
// and collect per-item failures instead of failing whole batches.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/labkit-dev/calsync/domain"
	syncerrors "github.com/labkit-dev/calsync/errors"
	"github.com/labkit-dev/calsync/internal/feed"
	"github.com/labkit-dev/calsync/internal/identity"
	"github.com/labkit-dev/calsync/internal/provider"
	"github.com/labkit-dev/calsync/internal/synclock"
	"github.com/labkit-dev/calsync/log"
)

const (
	// Access tokens expiring within this skew are refreshed before any
	// provider call is attempted.
	tokenRefreshSkew = 60 * time.Second

	// Import only considers events starting within this horizon.
	importHorizonDays = 120
)

// Engine holds the shared wiring for both sync directions.
type Engine struct {
	clients map[domain.Provider]provider.Client
	mappers map[domain.Provider]identity.Mapper
	tokens  domain.ProviderTokenRepository
	events  domain.CalendarEventRepository
	builder *feed.Builder
	locker  synclock.Locker
	logger  log.Logger
	now     func() time.Time
}

func NewEngine(
	clients map[domain.Provider]provider.Client,
	mappers map[domain.Provider]identity.Mapper,
	tokens domain.ProviderTokenRepository,
	events domain.CalendarEventRepository,
	builder *feed.Builder,
	locker synclock.Locker,
	logger log.Logger,
) *Engine {
	return &Engine{
		clients: clients,
		mappers: mappers,
		tokens:  tokens,
		events:  events,
		builder: builder,
		locker:  locker,
		logger:  logger,
		now:     time.Now,
	}
}

func (e *Engine) client(p domain.Provider) (provider.Client, error) {
	c, ok := e.clients[p]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", p)
	}
	return c, nil
}

func (e *Engine) mapper(p domain.Provider) (identity.Mapper, error) {
	m, ok := e.mappers[p]
	if !ok {
		return nil, fmt.Errorf("no identity mapper for provider %q", p)
	}
	return m, nil
}

// usableToken loads the stored token and refreshes it when it expires
// within the skew. The refreshed credentials are persisted before use; a
// refresh failure aborts the invocation since no per-event call could
// succeed without a live access token.
func (e *Engine) usableToken(ctx context.Context, userID string, p domain.Provider, client provider.Client) (*domain.ProviderToken, error) {
	token, err := e.tokens.Get(ctx, userID, p)
	if err != nil {
		return nil, err
	}
	if !token.ExpiresWithin(e.now(), tokenRefreshSkew) {
		return token, nil
	}

	refreshed, err := client.RefreshToken(ctx, token.RefreshToken)
	if err != nil {
		return nil, syncerrors.NewTokenRefreshError(string(p), err)
	}
	expiresAt := refreshed.ExpiresAt(e.now())
	if err := e.tokens.UpdateCredentials(ctx, userID, p, refreshed.AccessToken, refreshed.RefreshToken, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed token: %w", err)
	}
	e.logger.Info(ctx, "provider token refreshed", map[string]any{
		"user_id":  userID,
		"provider": string(p),
	})

	token.AccessToken = refreshed.AccessToken
	if refreshed.RefreshToken != "" {
		token.RefreshToken = refreshed.RefreshToken
	}
	token.ExpiresAt = expiresAt
	return token, nil
}
