package sync_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labkit-dev/calsync/domain"
	syncerrors "github.com/labkit-dev/calsync/errors"
	"github.com/labkit-dev/calsync/internal/feed"
	"github.com/labkit-dev/calsync/internal/identity"
	"github.com/labkit-dev/calsync/internal/provider"
	syncengine "github.com/labkit-dev/calsync/internal/sync"
	"github.com/labkit-dev/calsync/internal/synclock"
	"github.com/labkit-dev/calsync/log"
)

const testUser = "user-1"

type engineFixture struct {
	engine   *syncengine.Engine
	google   *fakeClient
	outlook  *fakeClient
	tokens   *fakeTokenRepo
	events   *fakeEventRepo
	mappings *fakeMappingRepo
	locker   synclock.Locker
}

func newFixture(t *testing.T, feedEvents []domain.FeedEvent) *engineFixture {
	t.Helper()

	google := &fakeClient{name: domain.ProviderGoogle, clientIDs: true}
	outlook := &fakeClient{name: domain.ProviderOutlook}
	tokens := newFakeTokenRepo()
	events := newFakeEventRepo()
	mappings := newFakeMappingRepo()
	locker := synclock.NewMemoryLocker(time.Minute)

	builder := feed.NewBuilder(log.NewNopLogger(),
		&stubSource{kind: domain.SourcePlanner, events: feedEvents})

	engine := syncengine.NewEngine(
		map[domain.Provider]provider.Client{
			domain.ProviderGoogle:  google,
			domain.ProviderOutlook: outlook,
		},
		map[domain.Provider]identity.Mapper{
			domain.ProviderGoogle:  identity.NewHashMapper(),
			domain.ProviderOutlook: identity.NewStoredMapper(domain.ProviderOutlook, mappings),
		},
		tokens, events, builder, locker, log.NewNopLogger(),
	)

	return &engineFixture{
		engine: engine, google: google, outlook: outlook,
		tokens: tokens, events: events, mappings: mappings, locker: locker,
	}
}

func (f *engineFixture) connect(t *testing.T, p domain.Provider, expiresIn time.Duration) {
	t.Helper()
	require.NoError(t, f.tokens.Upsert(context.Background(), &domain.ProviderToken{
		UserID:       testUser,
		Provider:     p,
		AccessToken:  "live-access",
		RefreshToken: "stored-refresh",
		ExpiresAt:    time.Now().Add(expiresIn),
	}))
}

func plannerEvent(id, summary string) domain.FeedEvent {
	return domain.FeedEvent{
		UID:        domain.FeedUID(domain.SourcePlanner, id),
		SourceKind: domain.SourcePlanner,
		SourceID:   id,
		Summary:    summary,
		StartAt:    "2026-03-10",
		AllDay:     true,
	}
}

func TestExport_NotConnected(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.engine.Export(context.Background(), testUser, domain.ProviderGoogle)
	assert.ErrorIs(t, err, syncerrors.ErrNotConnected)
}

func TestExport_LockHeld(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t, domain.ProviderGoogle, time.Hour)

	release, err := f.locker.Acquire(context.Background(), synclock.Key(testUser, string(domain.ProviderGoogle)))
	require.NoError(t, err)
	defer release()

	_, err = f.engine.Export(context.Background(), testUser, domain.ProviderGoogle)
	assert.ErrorIs(t, err, syncerrors.ErrSyncInProgress)
}

func TestExport_GoogleDeterministicIDs(t *testing.T) {
	ev1 := plannerEvent("p1", "Cohort A")
	ev2 := plannerEvent("p2", "Cohort B")
	f := newFixture(t, []domain.FeedEvent{ev1, ev2})
	f.connect(t, domain.ProviderGoogle, time.Hour)

	res, err := f.engine.Export(context.Background(), testUser, domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Synced)
	assert.Empty(t, res.Errors)

	require.Len(t, f.google.upserts, 2)
	assert.Equal(t, identity.DeterministicEventID(ev1), f.google.upserts[0].eventID)
	assert.Equal(t, identity.DeterministicEventID(ev2), f.google.upserts[1].eventID)

	// A second run addresses the exact same ids: idempotent by construction.
	res, err = f.engine.Export(context.Background(), testUser, domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Synced)
	assert.Equal(t, f.google.upserts[0].eventID, f.google.upserts[2].eventID)
}

func TestExport_OutlookMappingLifecycle(t *testing.T) {
	ev := plannerEvent("p1", "Cohort A")
	f := newFixture(t, []domain.FeedEvent{ev})
	f.connect(t, domain.ProviderOutlook, time.Hour)

	// First run: no mapping yet, create with provider-assigned id.
	res, err := f.engine.Export(context.Background(), testUser, domain.ProviderOutlook)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Synced)
	require.Len(t, f.outlook.upserts, 1)
	assert.Equal(t, "", f.outlook.upserts[0].eventID)

	mapping, err := f.mappings.Get(context.Background(), testUser, domain.ProviderOutlook, ev.UID)
	require.NoError(t, err)
	assert.Equal(t, "assigned-1", mapping.ProviderEventID)

	// Second run: mapping resolves, update in place.
	res, err = f.engine.Export(context.Background(), testUser, domain.ProviderOutlook)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Synced)
	require.Len(t, f.outlook.upserts, 2)
	assert.Equal(t, "assigned-1", f.outlook.upserts[1].eventID)
}

func TestExport_MappingPersistFailure(t *testing.T) {
	ev := plannerEvent("p1", "Cohort A")
	f := newFixture(t, []domain.FeedEvent{ev})
	f.connect(t, domain.ProviderOutlook, time.Hour)
	f.mappings.upsertErr = errors.New("write concern failed")

	res, err := f.engine.Export(context.Background(), testUser, domain.ProviderOutlook)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Synced)
	assert.Equal(t, 1, res.MappingFailures)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "mapping write failed")
}

func TestExport_PerItemFailureContinues(t *testing.T) {
	evs := []domain.FeedEvent{
		plannerEvent("p1", "Bad one"),
		plannerEvent("p2", "Good one"),
	}
	f := newFixture(t, evs)
	f.connect(t, domain.ProviderGoogle, time.Hour)
	f.google.upsertErrFor = map[string]error{
		"Bad one": syncerrors.NewProviderAPIError("google", "upsert event", 403, "quota"),
	}

	res, err := f.engine.Export(context.Background(), testUser, domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Synced)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], evs[0].UID)
}

func TestExport_ErrorListBounded(t *testing.T) {
	var evs []domain.FeedEvent
	errFor := map[string]error{}
	for i := 0; i < 15; i++ {
		ev := plannerEvent(string(rune('a'+i)), "Doomed")
		ev.Summary = ev.UID
		evs = append(evs, ev)
		errFor[ev.Summary] = errors.New("boom")
	}
	f := newFixture(t, evs)
	f.connect(t, domain.ProviderGoogle, time.Hour)
	f.google.upsertErrFor = errFor

	res, err := f.engine.Export(context.Background(), testUser, domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Synced)
	assert.Len(t, res.Errors, domain.MaxCollectedErrors)
}

func TestExport_RefreshesExpiringToken(t *testing.T) {
	ev := plannerEvent("p1", "Cohort A")
	f := newFixture(t, []domain.FeedEvent{ev})
	f.connect(t, domain.ProviderGoogle, 10*time.Second) // inside the 60s skew
	f.google.refreshed = &provider.Token{AccessToken: "fresh-access", RefreshToken: "", ExpiresIn: 3600}

	res, err := f.engine.Export(context.Background(), testUser, domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Synced)
	assert.Equal(t, 1, f.tokens.updateCalls)

	// Empty returned refresh token keeps the stored one.
	tok, err := f.tokens.Get(context.Background(), testUser, domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", tok.AccessToken)
	assert.Equal(t, "stored-refresh", tok.RefreshToken)
	assert.True(t, tok.ExpiresAt.After(time.Now().Add(30*time.Minute)))
}

func TestExport_RefreshFailureAborts(t *testing.T) {
	f := newFixture(t, []domain.FeedEvent{plannerEvent("p1", "Cohort A")})
	f.connect(t, domain.ProviderGoogle, -time.Minute)
	f.google.refreshErr = errors.New("invalid_grant")

	_, err := f.engine.Export(context.Background(), testUser, domain.ProviderGoogle)
	var refreshErr *syncerrors.TokenRefreshError
	require.ErrorAs(t, err, &refreshErr)
	assert.Empty(t, f.google.upserts)
}

func TestExport_FreshTokenNotRefreshed(t *testing.T) {
	f := newFixture(t, []domain.FeedEvent{plannerEvent("p1", "Cohort A")})
	f.connect(t, domain.ProviderGoogle, time.Hour)

	_, err := f.engine.Export(context.Background(), testUser, domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, 0, f.tokens.updateCalls)
}

func TestExport_UnknownProvider(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.engine.Export(context.Background(), testUser, domain.Provider("caldav"))
	assert.Error(t, err)
}

func TestIsConfigError(t *testing.T) {
	assert.True(t, syncengine.IsConfigError(syncerrors.ErrNotConnected))
	assert.True(t, syncengine.IsConfigError(syncerrors.ErrSyncInProgress))
	assert.True(t, syncengine.IsConfigError(syncerrors.ErrProviderMisconfigured))
	assert.False(t, syncengine.IsConfigError(errors.New("other")))
}
