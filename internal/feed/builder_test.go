package feed_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labkit-dev/calsync/domain"
	"github.com/labkit-dev/calsync/internal/feed"
	"github.com/labkit-dev/calsync/log"
)

type stubSource struct {
	kind   domain.SourceKind
	events []domain.FeedEvent
	err    error
}

func (s *stubSource) Kind() domain.SourceKind { return s.kind }

func (s *stubSource) ListSchedulable(context.Context, string) ([]domain.FeedEvent, error) {
	return s.events, s.err
}

func TestBuilder_MergesAndSorts(t *testing.T) {
	planner := &stubSource{kind: domain.SourcePlanner, events: []domain.FeedEvent{
		{UID: "planner-p1", SourceKind: domain.SourcePlanner, StartAt: "2026-03-10", AllDay: true},
	}}
	milestones := &stubSource{kind: domain.SourceMilestone, events: []domain.FeedEvent{
		{UID: "milestone-m1", SourceKind: domain.SourceMilestone, StartAt: "2026-03-01T09:00:00Z"},
		{UID: "milestone-m2", SourceKind: domain.SourceMilestone, StartAt: "2026-03-20T14:00:00Z"},
	}}
	native := &stubSource{kind: domain.SourceNative, events: []domain.FeedEvent{
		{UID: "native-n1", SourceKind: domain.SourceNative, StartAt: "2026-02-15T10:00:00Z"},
	}}

	b := feed.NewBuilder(log.NewNopLogger(), native, planner, milestones)
	events := b.Build(context.Background(), "user-1")

	require.Len(t, events, 4)
	uids := make([]string, 0, len(events))
	for _, ev := range events {
		uids = append(uids, ev.UID)
	}
	assert.Equal(t, []string{"native-n1", "milestone-m1", "planner-p1", "milestone-m2"}, uids)
}

func TestBuilder_FailingSourceSkipped(t *testing.T) {
	ok := &stubSource{kind: domain.SourceNative, events: []domain.FeedEvent{
		{UID: "native-n1", StartAt: "2026-03-01T09:00:00Z"},
	}}
	broken := &stubSource{kind: domain.SourceProtocol, err: errors.New("collection gone")}

	b := feed.NewBuilder(log.NewNopLogger(), ok, broken)
	events := b.Build(context.Background(), "user-1")

	require.Len(t, events, 1)
	assert.Equal(t, "native-n1", events[0].UID)
}

func TestBuilder_EmptySources(t *testing.T) {
	b := feed.NewBuilder(log.NewNopLogger())
	events := b.Build(context.Background(), "user-1")
	assert.Empty(t, events)
}

func TestFeedUID_Stable(t *testing.T) {
	uid := domain.FeedUID(domain.SourcePlanner, "abc123")
	assert.Equal(t, "planner-abc123", uid)
	assert.True(t, strings.HasPrefix(uid, string(domain.SourcePlanner)))
}
