package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/labkit-dev/calsync/domain"
	"github.com/labkit-dev/calsync/internal/metrics"
	"github.com/labkit-dev/calsync/internal/provider"
	"github.com/labkit-dev/calsync/internal/synclock"
)

// Import pulls foreign events from the provider calendar into
// calendar_events. Events this system exported are excluded via the
// managed-id set, recomputed from the current feed and mapping table on
// every invocation. Imported rows are keyed by (user, source type,
// provider event id) so re-imports update in place.
func (e *Engine) Import(ctx context.Context, userID string, p domain.Provider) (*domain.ImportResult, error) {
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

	now := e.now()
	win := provider.Window{Start: now, End: now.AddDate(0, 0, importHorizonDays)}
	remote, err := client.ListEvents(ctx, token.AccessToken, token.CalendarID, win)
	if err != nil {
		return nil, err
	}

	feedEvents := e.builder.Build(ctx, userID)
	managed, err := mapper.ManagedIDs(ctx, userID, feedEvents)
	if err != nil {
		return nil, fmt.Errorf("failed to compute managed event ids: %w", err)
	}

	sourceType := domain.ExternalSourceType(p)
	result := &domain.ImportResult{Errors: []string{}}

	for _, ev := range remote {
		result.Scanned++
		if _, ours := managed[ev.ID]; ours {
			result.Skipped++
			continue
		}
		if ev.StartAt == "" {
			result.Skipped++
			continue
		}

		status := domain.EventStatusScheduled
		if ev.Cancelled {
			status = domain.EventStatusCancelled
		}

		existing, err := e.events.GetBySource(ctx, userID, sourceType, ev.ID)
		switch {
		case err == nil:
			existing.Title = ev.Summary
			existing.Description = ev.Description
			existing.Location = ev.Location
			existing.StartAt = ev.StartAt
			existing.EndAt = ev.EndAt
			existing.AllDay = ev.AllDay
			existing.Status = status
			setImportMetadata(existing, p, ev)
			if err := e.events.Update(ctx, existing); err != nil {
				result.Errors = domain.AppendBoundedError(result.Errors,
					fmt.Sprintf("%s: failed to update imported event: %v", ev.ID, err))
				metrics.IncSyncError(string(p))
				continue
			}
			result.Updated++
			metrics.IncImported(string(p))

		case errors.Is(err, domain.ErrEventNotFound):
			row := &domain.CalendarEvent{
				UserID:      userID,
				Title:       ev.Summary,
				Description: ev.Description,
				Location:    ev.Location,
				StartAt:     ev.StartAt,
				EndAt:       ev.EndAt,
				AllDay:      ev.AllDay,
				Status:      status,
				SourceType:  sourceType,
				SourceID:    ev.ID,
				SourceLabel: importSourceLabel(p),
			}
			setImportMetadata(row, p, ev)
			if err := e.events.Create(ctx, row); err != nil {
				result.Errors = domain.AppendBoundedError(result.Errors,
					fmt.Sprintf("%s: failed to store imported event: %v", ev.ID, err))
				metrics.IncSyncError(string(p))
				continue
			}
			result.Imported++
			metrics.IncImported(string(p))

		default:
			result.Errors = domain.AppendBoundedError(result.Errors,
				fmt.Sprintf("%s: lookup failed: %v", ev.ID, err))
			metrics.IncSyncError(string(p))
		}
	}

	e.logger.Info(ctx, "import finished", map[string]any{
		"user_id":  userID,
		"provider": string(p),
		"scanned":  result.Scanned,
		"imported": result.Imported,
		"updated":  result.Updated,
		"skipped":  result.Skipped,
		"errors":   len(result.Errors),
	})
	return result, nil
}

func setImportMetadata(row *domain.CalendarEvent, p domain.Provider, ev provider.Event) {
	if row.Metadata == nil {
		row.Metadata = map[string]any{}
	}
	row.Metadata["provider"] = string(p)
	row.Metadata["provider_event_id"] = ev.ID
	if ev.Link != "" {
		row.Metadata["provider_link"] = ev.Link
	}
	if ev.UpdatedAt != "" {
		row.Metadata["provider_updated_at"] = ev.UpdatedAt
	}
}

func importSourceLabel(p domain.Provider) string {
	switch p {
	case domain.ProviderGoogle:
		return "Google Calendar"
	case domain.ProviderOutlook:
		return "Outlook Calendar"
	default:
		return string(p)
	}
}
