package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/labkit-dev/calsync/domain"
	syncerrors "github.com/labkit-dev/calsync/errors"
	"github.com/labkit-dev/calsync/internal/metrics"
	"github.com/labkit-dev/calsync/internal/provider"
	"github.com/labkit-dev/calsync/internal/synclock"
)

// Export pushes the user's current feed to the provider calendar. Every
// feed event is upserted against its resolved provider id, so repeated
// runs converge instead of duplicating. Per-item failures land in the
// result; only lock, connection, and token errors come back as Go
// errors.
func (e *Engine) Export(ctx context.Context, userID string, p domain.Provider) (*domain.SyncResult, error) {
	client, err := e.client(p)
	if err != nil {
		return nil, err
	}
	mapper, err := e.mapper(p)
	if err != nil {
		return nil, err
	}

	release, err := e.locker.Acquire(ctx, synclock.Key(userID, string(p)))
	if err != nil {
		return nil, err
	}
	defer release()

	token, err := e.usableToken(ctx, userID, p, client)
	if err != nil {
		return nil, err
	}

	events := e.builder.Build(ctx, userID)
	result := &domain.SyncResult{Errors: []string{}}

	for _, ev := range events {
		id, known, err := mapper.Resolve(ctx, userID, ev)
		if err != nil {
			result.Errors = domain.AppendBoundedError(result.Errors,
				fmt.Sprintf("%s: failed to resolve provider id: %v", ev.UID, err))
			metrics.IncSyncError(string(p))
			continue
		}

		payload := provider.EventPayload{
			Summary:     ev.Summary,
			Description: ev.Description,
			Location:    ev.Location,
			StartAt:     ev.StartAt,
			EndAt:       ev.EndAt,
			AllDay:      ev.AllDay,
		}
		upsertID := ""
		if known {
			upsertID = id
		}
		res, err := client.UpsertEvent(ctx, token.AccessToken, token.CalendarID, upsertID, payload)
		if err != nil {
			result.Errors = domain.AppendBoundedError(result.Errors,
				fmt.Sprintf("%s: %v", ev.UID, err))
			metrics.IncSyncError(string(p))
			continue
		}

		if !known {
			if err := mapper.Commit(ctx, userID, ev, res.ID); err != nil {
				// The remote event exists but its id was lost. The next
				// run would create a duplicate; flag separately for
				// manual reconciliation instead of hiding it in the
				// ordinary error list.
				persistErr := syncerrors.NewMappingPersistError(string(p), ev.UID, res.ID, err)
				e.logger.Error(ctx, "mapping write failed after remote create", persistErr, map[string]any{
					"user_id":           userID,
					"provider":          string(p),
					"uid":               ev.UID,
					"provider_event_id": res.ID,
				})
				result.MappingFailures++
				result.Errors = domain.AppendBoundedError(result.Errors, persistErr.Error())
				metrics.IncMappingFailure()
				continue
			}
		}

		result.Synced++
		metrics.IncExported(string(p))
	}

	e.logger.Info(ctx, "export finished", map[string]any{
		"user_id":          userID,
		"provider":         string(p),
		"synced":           result.Synced,
		"errors":           len(result.Errors),
		"mapping_failures": result.MappingFailures,
	})
	return result, nil
}

// IsConfigError reports whether err belongs to the configuration class
// that callers surface as a client mistake rather than a server fault.
func IsConfigError(err error) bool {
	return errors.Is(err, syncerrors.ErrNotConnected) ||
		errors.Is(err, syncerrors.ErrProviderMisconfigured) ||
		errors.Is(err, syncerrors.ErrSyncInProgress)
}
