// Package connect implements the provider connection lifecycle: the
// OAuth consent redirect, the callback exchange, disconnect, and
// connection status.
package connect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"github.com/labkit-dev/calsync/domain"
	syncerrors "github.com/labkit-dev/calsync/errors"
	"github.com/labkit-dev/calsync/internal/provider"
	"github.com/labkit-dev/calsync/log"
)

// The consent round trip must finish within this window.
const stateTTL = 10 * time.Minute

var (
	ErrStateInvalid = errors.New("oauth state is unknown or expired")
)

// pendingAuth is what we remember between the redirect and the callback.
type pendingAuth struct {
	UserID   string
	Provider domain.Provider
}

// Service drives the connect flow for all configured providers.
type Service struct {
	clients  map[domain.Provider]provider.Client
	tokens   domain.ProviderTokenRepository
	mappings domain.EventMappingRepository
	states   *ttlcache.Cache[string, pendingAuth]
	logger   log.Logger
	now      func() time.Time
}

func NewService(
	clients map[domain.Provider]provider.Client,
	tokens domain.ProviderTokenRepository,
	mappings domain.EventMappingRepository,
	logger log.Logger,
) *Service {
	states := ttlcache.New(
		ttlcache.WithTTL[string, pendingAuth](stateTTL),
		ttlcache.WithDisableTouchOnHit[string, pendingAuth](),
	)
	go states.Start()

	return &Service{
		clients:  clients,
		tokens:   tokens,
		mappings: mappings,
		states:   states,
		logger:   logger,
		now:      time.Now,
	}
}

// Close stops the state-cache cleanup goroutine.
func (s *Service) Close() {
	s.states.Stop()
}

func (s *Service) client(p domain.Provider) (provider.Client, error) {
	c, ok := s.clients[p]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", p)
	}
	return c, nil
}

// StartAuth returns the provider consent URL for the user. The opaque
// state ties the callback back to the user without trusting anything the
// provider echoes.
func (s *Service) StartAuth(_ context.Context, userID string, p domain.Provider, redirectURL string) (string, error) {
	client, err := s.client(p)
	if err != nil {
		return "", err
	}
	state := uuid.NewString()
	url, err := client.AuthCodeURL(state, redirectURL)
	if err != nil {
		return "", err
	}
	s.states.Set(state, pendingAuth{UserID: userID, Provider: p}, ttlcache.DefaultTTL)
	return url, nil
}

// HandleCallback finishes the flow: validates the state, exchanges the
// code, resolves the account email, and stores the credentials. The
// state is single-use.
func (s *Service) HandleCallback(ctx context.Context, p domain.Provider, state, code, redirectURL string) (*domain.ProviderToken, error) {
	item := s.states.Get(state)
	if item == nil {
		return nil, ErrStateInvalid
	}
	pending := item.Value()
	s.states.Delete(state)
	if pending.Provider != p {
		return nil, ErrStateInvalid
	}

	client, err := s.client(p)
	if err != nil {
		return nil, err
	}
	tok, err := client.ExchangeCode(ctx, redirectURL, code)
	if err != nil {
		return nil, err
	}

	email, err := client.AccountEmail(ctx, tok.AccessToken)
	if err != nil {
		// The connection still works without the display email.
		s.logger.Warn(ctx, "could not resolve account email", map[string]any{
			"user_id":  pending.UserID,
			"provider": string(p),
			"error":    err.Error(),
		})
	}

	now := s.now()
	record := &domain.ProviderToken{
		UserID:       pending.UserID,
		Provider:     p,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.ExpiresAt(now),
		AccountEmail: email,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if client.SupportsClientIDs() {
		record.CalendarID = "primary"
	}
	if err := s.tokens.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store provider token: %w", err)
	}

	s.logger.Info(ctx, "provider connected", map[string]any{
		"user_id":  pending.UserID,
		"provider": string(p),
		"account":  email,
	})
	return record, nil
}

// Disconnect removes the stored credentials and, for mapping-table
// providers, the event mappings. Exported events stay on the remote
// calendar; reconnecting later starts a fresh mapping history.
func (s *Service) Disconnect(ctx context.Context, userID string, p domain.Provider) error {
	if err := s.tokens.Delete(ctx, userID, p); err != nil && !errors.Is(err, syncerrors.ErrNotConnected) {
		return err
	}
	if err := s.mappings.DeleteByUser(ctx, userID, p); err != nil {
		return err
	}
	s.logger.Info(ctx, "provider disconnected", map[string]any{
		"user_id":  userID,
		"provider": string(p),
	})
	return nil
}

// Status describes one provider connection.
type Status struct {
	Provider     domain.Provider `json:"provider"`
	Connected    bool            `json:"connected"`
	AccountEmail string          `json:"account_email,omitempty"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty"`
}

// ConnectionStatus reports whether the user has a live connection to the
// provider.
func (s *Service) ConnectionStatus(ctx context.Context, userID string, p domain.Provider) (*Status, error) {
	token, err := s.tokens.Get(ctx, userID, p)
	if errors.Is(err, syncerrors.ErrNotConnected) {
		return &Status{Provider: p}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Status{
		Provider:     p,
		Connected:    true,
		AccountEmail: token.AccountEmail,
		ExpiresAt:    &token.ExpiresAt,
	}, nil
}
