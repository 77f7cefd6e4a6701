package sync_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/labkit-dev/calsync/domain"
	syncerrors "github.com/labkit-dev/calsync/errors"
	"github.com/labkit-dev/calsync/internal/provider"
)

// In-memory fakes for the engine tests. They implement just enough of
// the repository contracts; index enforcement stays with the real Mongo
// implementations.

type fakeTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*domain.ProviderToken

	updateErr   error
	updateCalls int
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: make(map[string]*domain.ProviderToken)}
}

func tokenKey(userID string, p domain.Provider) string {
	return userID + "/" + string(p)
}

func (r *fakeTokenRepo) Upsert(_ context.Context, token *domain.ProviderToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *token
	r.tokens[tokenKey(token.UserID, token.Provider)] = &cp
	return nil
}

func (r *fakeTokenRepo) Get(_ context.Context, userID string, p domain.Provider) (*domain.ProviderToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tok, ok := r.tokens[tokenKey(userID, p)]
	if !ok {
		return nil, syncerrors.ErrNotConnected
	}
	cp := *tok
	return &cp, nil
}

func (r *fakeTokenRepo) UpdateCredentials(_ context.Context, userID string, p domain.Provider, accessToken, refreshToken string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateCalls++
	if r.updateErr != nil {
		return r.updateErr
	}
	tok, ok := r.tokens[tokenKey(userID, p)]
	if !ok {
		return syncerrors.ErrNotConnected
	}
	tok.AccessToken = accessToken
	if refreshToken != "" {
		tok.RefreshToken = refreshToken
	}
	tok.ExpiresAt = expiresAt
	return nil
}

func (r *fakeTokenRepo) Delete(_ context.Context, userID string, p domain.Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, tokenKey(userID, p))
	return nil
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events map[string]*domain.CalendarEvent // keyed user/sourceType/sourceID
	nextID int

	createErr error
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: make(map[string]*domain.CalendarEvent)}
}

func eventKey(userID, sourceType, sourceID string) string {
	return userID + "/" + sourceType + "/" + sourceID
}

func (r *fakeEventRepo) Create(_ context.Context, ev *domain.CalendarEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	ev.ID = fmt.Sprintf("ev%d", r.nextID)
	cp := *ev
	r.events[eventKey(ev.UserID, ev.SourceType, ev.SourceID)] = &cp
	return nil
}

func (r *fakeEventRepo) Update(_ context.Context, ev *domain.CalendarEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := eventKey(ev.UserID, ev.SourceType, ev.SourceID)
	if _, ok := r.events[key]; !ok {
		return domain.ErrEventNotFound
	}
	cp := *ev
	r.events[key] = &cp
	return nil
}

func (r *fakeEventRepo) GetBySource(_ context.Context, userID, sourceType, sourceID string) (*domain.CalendarEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.events[eventKey(userID, sourceType, sourceID)]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	cp := *ev
	return &cp, nil
}

func (r *fakeEventRepo) ListByUser(_ context.Context, userID string) ([]*domain.CalendarEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.CalendarEvent
	for _, ev := range r.events {
		if ev.UserID == userID {
			cp := *ev
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeEventRepo) CountBySource(_ context.Context, userID, sourceType string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, ev := range r.events {
		if ev.UserID == userID && ev.SourceType == sourceType {
			n++
		}
	}
	return n, nil
}

type fakeMappingRepo struct {
	mu       sync.Mutex
	mappings map[string]*domain.EventMapping

	upsertErr error
}

func newFakeMappingRepo() *fakeMappingRepo {
	return &fakeMappingRepo{mappings: make(map[string]*domain.EventMapping)}
}

func mappingKey(userID string, p domain.Provider, uid string) string {
	return userID + "/" + string(p) + "/" + uid
}

func (r *fakeMappingRepo) Upsert(_ context.Context, m *domain.EventMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return r.upsertErr
	}
	cp := *m
	r.mappings[mappingKey(m.UserID, m.Provider, m.SourceUID)] = &cp
	return nil
}

func (r *fakeMappingRepo) Get(_ context.Context, userID string, p domain.Provider, sourceUID string) (*domain.EventMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mappings[mappingKey(userID, p, sourceUID)]
	if !ok {
		return nil, domain.ErrMappingNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *fakeMappingRepo) ListByUser(_ context.Context, userID string, p domain.Provider) ([]*domain.EventMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.EventMapping
	for _, m := range r.mappings {
		if m.UserID == userID && m.Provider == p {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeMappingRepo) DeleteByUser(_ context.Context, userID string, p domain.Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, m := range r.mappings {
		if m.UserID == userID && m.Provider == p {
			delete(r.mappings, k)
		}
	}
	return nil
}

// fakeClient records upserts and serves canned listings.
type fakeClient struct {
	name       domain.Provider
	clientIDs  bool
	listEvents []provider.Event
	listErr    error

	refreshed  *provider.Token
	refreshErr error

	upsertErrFor map[string]error // keyed by summary
	nextAssigned int

	mu      sync.Mutex
	upserts []recordedUpsert
}

type recordedUpsert struct {
	eventID string
	payload provider.EventPayload
}

func (c *fakeClient) Name() domain.Provider { return c.name }
func (c *fakeClient) SupportsClientIDs() bool { return c.clientIDs }

func (c *fakeClient) AuthCodeURL(string, string) (string, error) { return "http://consent", nil }

func (c *fakeClient) ExchangeCode(context.Context, string, string) (*provider.Token, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeClient) RefreshToken(context.Context, string) (*provider.Token, error) {
	if c.refreshErr != nil {
		return nil, c.refreshErr
	}
	if c.refreshed != nil {
		return c.refreshed, nil
	}
	return nil, errors.New("unexpected refresh")
}

func (c *fakeClient) AccountEmail(context.Context, string) (string, error) {
	return "user@example.com", nil
}

func (c *fakeClient) ListEvents(context.Context, string, string, provider.Window) ([]provider.Event, error) {
	return c.listEvents, c.listErr
}

func (c *fakeClient) UpsertEvent(_ context.Context, _, _, eventID string, payload provider.EventPayload) (*provider.UpsertResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.upsertErrFor[payload.Summary]; ok {
		return nil, err
	}
	c.upserts = append(c.upserts, recordedUpsert{eventID: eventID, payload: payload})
	id := eventID
	if id == "" {
		c.nextAssigned++
		id = fmt.Sprintf("assigned-%d", c.nextAssigned)
	}
	return &provider.UpsertResult{ID: id}, nil
}

type stubSource struct {
	kind   domain.SourceKind
	events []domain.FeedEvent
}

func (s *stubSource) Kind() domain.SourceKind { return s.kind }

func (s *stubSource) ListSchedulable(context.Context, string) ([]domain.FeedEvent, error) {
	return s.events, nil
}
