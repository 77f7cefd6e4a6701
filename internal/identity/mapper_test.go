package identity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labkit-dev/calsync/domain"
	"github.com/labkit-dev/calsync/internal/identity"
)

type fakeMappingRepo struct {
	mappings map[string]*domain.EventMapping
}

func newFakeMappingRepo() *fakeMappingRepo {
	return &fakeMappingRepo{mappings: make(map[string]*domain.EventMapping)}
}

func mappingKey(userID string, p domain.Provider, sourceUID string) string {
	return userID + "/" + string(p) + "/" + sourceUID
}

func (r *fakeMappingRepo) Upsert(_ context.Context, m *domain.EventMapping) error {
	r.mappings[mappingKey(m.UserID, m.Provider, m.SourceUID)] = m
	return nil
}

func (r *fakeMappingRepo) Get(_ context.Context, userID string, p domain.Provider, sourceUID string) (*domain.EventMapping, error) {
	m, ok := r.mappings[mappingKey(userID, p, sourceUID)]
	if !ok {
		return nil, domain.ErrMappingNotFound
	}
	return m, nil
}

func (r *fakeMappingRepo) ListByUser(_ context.Context, userID string, p domain.Provider) ([]*domain.EventMapping, error) {
	var out []*domain.EventMapping
	for _, m := range r.mappings {
		if m.UserID == userID && m.Provider == p {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMappingRepo) DeleteByUser(_ context.Context, userID string, p domain.Provider) error {
	for k, m := range r.mappings {
		if m.UserID == userID && m.Provider == p {
			delete(r.mappings, k)
		}
	}
	return nil
}

func plannerEvent(sourceID string) domain.FeedEvent {
	return domain.FeedEvent{
		UID:        "planner:" + sourceID,
		SourceKind: domain.SourcePlanner,
		SourceID:   sourceID,
		Summary:    "[Planner] Sampling",
		StartAt:    "2026-03-10",
		AllDay:     true,
	}
}

func TestDeterministicEventID_StableAndDistinct(t *testing.T) {
	a := identity.DeterministicEventID(plannerEvent("p1"))
	b := identity.DeterministicEventID(plannerEvent("p1"))
	c := identity.DeterministicEventID(plannerEvent("p2"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 40)
	// Hex digest stays inside the id alphabet providers accept.
	assert.Regexp(t, "^[0-9a-f]+$", a)
}

func TestDeterministicEventID_IgnoresMutableFields(t *testing.T) {
	ev := plannerEvent("p1")
	renamed := ev
	renamed.Summary = "[Planner] Sampling (moved)"
	renamed.StartAt = "2026-03-12"

	assert.Equal(t, identity.DeterministicEventID(ev), identity.DeterministicEventID(renamed))
}

func TestHashMapper_ResolveAlwaysKnown(t *testing.T) {
	m := identity.NewHashMapper()

	id, known, err := m.Resolve(context.Background(), "u1", plannerEvent("p1"))
	require.NoError(t, err)
	assert.True(t, known)
	assert.Equal(t, identity.DeterministicEventID(plannerEvent("p1")), id)

	require.NoError(t, m.Commit(context.Background(), "u1", plannerEvent("p1"), id))
}

func TestHashMapper_ManagedIDsCoversWholeFeed(t *testing.T) {
	m := identity.NewHashMapper()
	feed := []domain.FeedEvent{plannerEvent("p1"), plannerEvent("p2")}

	ids, err := m.ManagedIDs(context.Background(), "u1", feed)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, identity.DeterministicEventID(feed[0]))
	assert.Contains(t, ids, identity.DeterministicEventID(feed[1]))
}

func TestStoredMapper_ResolveUnknownUntilCommit(t *testing.T) {
	repo := newFakeMappingRepo()
	m := identity.NewStoredMapper(domain.ProviderOutlook, repo)
	ev := plannerEvent("p1")

	id, known, err := m.Resolve(context.Background(), "u1", ev)
	require.NoError(t, err)
	assert.False(t, known)
	assert.Empty(t, id)

	require.NoError(t, m.Commit(context.Background(), "u1", ev, "remote-1"))

	id, known, err = m.Resolve(context.Background(), "u1", ev)
	require.NoError(t, err)
	assert.True(t, known)
	assert.Equal(t, "remote-1", id)
}

func TestStoredMapper_ManagedIDsFromMappingTable(t *testing.T) {
	repo := newFakeMappingRepo()
	m := identity.NewStoredMapper(domain.ProviderOutlook, repo)

	require.NoError(t, m.Commit(context.Background(), "u1", plannerEvent("p1"), "remote-1"))
	require.NoError(t, m.Commit(context.Background(), "u1", plannerEvent("p2"), "remote-2"))
	// Other users' mappings stay invisible.
	require.NoError(t, m.Commit(context.Background(), "u2", plannerEvent("p3"), "remote-3"))

	ids, err := m.ManagedIDs(context.Background(), "u1", nil)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, "remote-1")
	assert.Contains(t, ids, "remote-2")
}
