package mongodb

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/labkit-dev/calsync/domain"
)

// The feed sources project heterogeneous collections into canonical
// FeedEvents. They are read-only; the feed is a view, never a table.

// NativeEventSource projects calendar_events rows (user-created and
// imported) into the feed.
type NativeEventSource struct {
	events domain.CalendarEventRepository
}

func NewNativeEventSource(events domain.CalendarEventRepository) *NativeEventSource {
	return &NativeEventSource{events: events}
}

func (s *NativeEventSource) Kind() domain.SourceKind { return domain.SourceNative }

func (s *NativeEventSource) ListSchedulable(ctx context.Context, userID string) ([]domain.FeedEvent, error) {
	rows, err := s.events.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	events := make([]domain.FeedEvent, 0, len(rows))
	for _, row := range rows {
		if row.StartAt == "" {
			continue
		}
		events = append(events, domain.FeedEvent{
			UID:            domain.FeedUID(domain.SourceNative, row.ID),
			SourceKind:     domain.SourceNative,
			SourceID:       row.ID,
			Summary:        row.Title,
			Description:    row.Description,
			Location:       row.Location,
			StartAt:        row.StartAt,
			EndAt:          row.EndAt,
			AllDay:         row.AllDay,
			NativeEventID:  row.ID,
			NativeMetadata: row.Metadata,
		})
	}
	return events, nil
}

// plannerRow is a planned experiment; dates are calendar dates and the
// whole span is an all-day event.
type plannerRow struct {
	ID          string `bson:"_id"`
	Title       string `bson:"title"`
	Description string `bson:"description,omitempty"`
	StartDate   string `bson:"start_date,omitempty"`
	EndDate     string `bson:"end_date,omitempty"`
}

// PlannerSource projects planner_experiments rows into all-day feed events.
type PlannerSource struct {
	coll *mongo.Collection
}

func NewPlannerSource(db *mongo.Database) *PlannerSource {
	return &PlannerSource{coll: db.Collection(PlannerCollection)}
}

func (s *PlannerSource) Kind() domain.SourceKind { return domain.SourcePlanner }

func (s *PlannerSource) ListSchedulable(ctx context.Context, userID string) ([]domain.FeedEvent, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []plannerRow
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	events := make([]domain.FeedEvent, 0, len(rows))
	for _, row := range rows {
		if row.StartDate == "" && row.EndDate == "" {
			continue
		}
		start := row.StartDate
		if start == "" {
			start = row.EndDate
		}
		end := row.EndDate
		if end == "" {
			end = row.StartDate
		}
		events = append(events, domain.FeedEvent{
			UID:         domain.FeedUID(domain.SourcePlanner, row.ID),
			SourceKind:  domain.SourcePlanner,
			SourceID:    row.ID,
			Summary:     "[Planner] " + row.Title,
			Description: row.Description,
			StartAt:     start,
			EndAt:       end,
			AllDay:      true,
		})
	}
	return events, nil
}

// timepointRow is an experiment milestone with a concrete instant.
type timepointRow struct {
	ID              string `bson:"_id"`
	Label           string `bson:"label"`
	ScheduledAt     string `bson:"scheduled_at,omitempty"`
	ExperimentTitle string `bson:"experiment_title,omitempty"`
}

// TimepointSource projects experiment_timepoints rows into timed feed events.
type TimepointSource struct {
	coll *mongo.Collection
}

func NewTimepointSource(db *mongo.Database) *TimepointSource {
	return &TimepointSource{coll: db.Collection(TimepointsCollection)}
}

func (s *TimepointSource) Kind() domain.SourceKind { return domain.SourceMilestone }

func (s *TimepointSource) ListSchedulable(ctx context.Context, userID string) ([]domain.FeedEvent, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []timepointRow
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	events := make([]domain.FeedEvent, 0, len(rows))
	for _, row := range rows {
		if row.ScheduledAt == "" {
			continue
		}
		summary := "[Timepoint] " + row.Label
		if row.ExperimentTitle != "" {
			summary += " · " + row.ExperimentTitle
		}
		events = append(events, domain.FeedEvent{
			UID:        domain.FeedUID(domain.SourceMilestone, row.ID),
			SourceKind: domain.SourceMilestone,
			SourceID:   row.ID,
			Summary:    summary,
			StartAt:    row.ScheduledAt,
			AllDay:     false,
		})
	}
	return events, nil
}

// protocolRunRow is a scheduled protocol run against a subject.
type protocolRunRow struct {
	ID            string `bson:"_id"`
	RunType       string `bson:"run_type"`
	ScheduledDate string `bson:"scheduled_date,omitempty"`
	Status        string `bson:"status,omitempty"`
	SubjectLabel  string `bson:"subject_label,omitempty"`
	DayOffset     *int   `bson:"day_offset,omitempty"`
	GroupName     string `bson:"group_name,omitempty"`
}

// ProtocolRunSource projects protocol_runs rows into all-day feed events.
type ProtocolRunSource struct {
	coll *mongo.Collection
}

func NewProtocolRunSource(db *mongo.Database) *ProtocolRunSource {
	return &ProtocolRunSource{coll: db.Collection(ProtocolRunsCollection)}
}

func (s *ProtocolRunSource) Kind() domain.SourceKind { return domain.SourceProtocol }

func (s *ProtocolRunSource) ListSchedulable(ctx context.Context, userID string) ([]domain.FeedEvent, error) {
	cursor, err := s.coll.Find(ctx, bson.M{
		"user_id":        userID,
		"scheduled_date": bson.M{"$exists": true, "$gt": ""},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []protocolRunRow
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	events := make([]domain.FeedEvent, 0, len(rows))
	for _, row := range rows {
		if row.ScheduledDate == "" {
			continue
		}
		label := strings.ReplaceAll(row.RunType, "_", " ")
		subject := row.SubjectLabel
		if subject == "" {
			subject = "?"
		}
		summary := fmt.Sprintf("[Protocol] %s · #%s", label, subject)
		if row.DayOffset != nil {
			summary += fmt.Sprintf(" @ %dd", *row.DayOffset)
		}
		if row.GroupName != "" {
			summary += " · " + row.GroupName
		}
		events = append(events, domain.FeedEvent{
			UID:         domain.FeedUID(domain.SourceProtocol, row.ID),
			SourceKind:  domain.SourceProtocol,
			SourceID:    row.ID,
			Summary:     summary,
			Description: "Status: " + row.Status,
			StartAt:     row.ScheduledDate,
			AllDay:      true,
		})
	}
	return events, nil
}
