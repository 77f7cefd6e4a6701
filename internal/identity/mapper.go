// Package identity derives stable provider-side event identifiers for
// feed events, so that repeated export runs are idempotent. Two
// strategies exist behind one interface: a deterministic hash for
// providers that accept caller-supplied ids, and a persisted mapping
// table for providers that assign their own.
package identity

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/labkit-dev/calsync/domain"
)

// Mapper resolves and records the provider event id for a feed event.
type Mapper interface {
	// Resolve returns the provider-side event id for ev. known reports
	// whether the id is authoritative: for the hash strategy it always
	// is; for the stored strategy it is true only when a mapping row
	// exists, and the caller must create the remote event and Commit the
	// returned id otherwise.
	Resolve(ctx context.Context, userID string, ev domain.FeedEvent) (id string, known bool, err error)

	// Commit persists a freshly created provider event id. A no-op for
	// the hash strategy.
	Commit(ctx context.Context, userID string, ev domain.FeedEvent, providerEventID string) error

	// ManagedIDs returns every provider event id this system's export
	// could own for the user, given the current feed. Import uses it to
	// exclude managed events. It is recomputed per invocation; staleness
	// bugs hide in caches.
	ManagedIDs(ctx context.Context, userID string, feed []domain.FeedEvent) (map[string]struct{}, error)
}

// DeterministicEventID hashes a feed event's identity into an id the
// provider accepts as caller-supplied. SHA-1 hex is a subset of the
// accepted a-v0-9 character set; 40 chars is the full digest.
func DeterministicEventID(ev domain.FeedEvent) string {
	seed := fmt.Sprintf("%s:%s:%s", ev.SourceKind, ev.SourceID, ev.UID)
	sum := sha1.Sum([]byte(seed))
	return hex.EncodeToString(sum[:])[:40]
}

// HashMapper implements Mapper with the deterministic-hash strategy.
// Same inputs always yield the same id, which makes export a blind
// upsert with no read-before-write race.
type HashMapper struct{}

func NewHashMapper() *HashMapper { return &HashMapper{} }

func (m *HashMapper) Resolve(_ context.Context, _ string, ev domain.FeedEvent) (string, bool, error) {
	return DeterministicEventID(ev), true, nil
}

func (m *HashMapper) Commit(context.Context, string, domain.FeedEvent, string) error {
	return nil
}

func (m *HashMapper) ManagedIDs(_ context.Context, _ string, feed []domain.FeedEvent) (map[string]struct{}, error) {
	ids := make(map[string]struct{}, len(feed))
	for _, ev := range feed {
		ids[DeterministicEventID(ev)] = struct{}{}
	}
	return ids, nil
}

// StoredMapper implements Mapper with the explicit mapping table, for
// providers that disallow caller-supplied ids.
type StoredMapper struct {
	provider domain.Provider
	mappings domain.EventMappingRepository
}

func NewStoredMapper(provider domain.Provider, mappings domain.EventMappingRepository) *StoredMapper {
	return &StoredMapper{provider: provider, mappings: mappings}
}

func (m *StoredMapper) Resolve(ctx context.Context, userID string, ev domain.FeedEvent) (string, bool, error) {
	mapping, err := m.mappings.Get(ctx, userID, m.provider, ev.UID)
	if errors.Is(err, domain.ErrMappingNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return mapping.ProviderEventID, true, nil
}

func (m *StoredMapper) Commit(ctx context.Context, userID string, ev domain.FeedEvent, providerEventID string) error {
	return m.mappings.Upsert(ctx, &domain.EventMapping{
		UserID:          userID,
		Provider:        m.provider,
		SourceUID:       ev.UID,
		ProviderEventID: providerEventID,
	})
}

func (m *StoredMapper) ManagedIDs(ctx context.Context, userID string, _ []domain.FeedEvent) (map[string]struct{}, error) {
	rows, err := m.mappings.ListByUser(ctx, userID, m.provider)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		ids[row.ProviderEventID] = struct{}{}
	}
	return ids, nil
}
