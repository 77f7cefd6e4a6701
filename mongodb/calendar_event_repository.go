package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/labkit-dev/calsync/domain"
)

// CalendarEventRepository stores native and imported calendar events in
// the calendar_events collection.
type CalendarEventRepository struct {
	coll *mongo.Collection
}

func NewCalendarEventRepository(ctx context.Context, db *mongo.Database) (domain.CalendarEventRepository, error) {
	coll := db.Collection(CalendarEventsCollection)
	// Import upserts are keyed by (user, source_type, source_id). The
	// index is partial: native rows have no source_id.
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "source_type", Value: 1}, {Key: "source_id", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"source_id": bson.M{"$exists": true, "$gt": ""}}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_events index: %w", err)
	}
	return &CalendarEventRepository{coll: coll}, nil
}

func (r *CalendarEventRepository) Create(ctx context.Context, event *domain.CalendarEvent) error {
	now := time.Now().UTC()
	if event.ID == "" {
		event.ID = bson.NewObjectID().Hex()
	}
	event.CreatedAt = now
	event.UpdatedAt = now
	_, err := r.coll.InsertOne(ctx, event)
	return err
}

func (r *CalendarEventRepository) Update(ctx context.Context, event *domain.CalendarEvent) error {
	event.UpdatedAt = time.Now().UTC()
	result, err := r.coll.ReplaceOne(ctx, bson.M{"_id": event.ID, "user_id": event.UserID}, event)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

func (r *CalendarEventRepository) GetBySource(ctx context.Context, userID, sourceType, sourceID string) (*domain.CalendarEvent, error) {
	var event domain.CalendarEvent
	err := r.coll.FindOne(ctx, bson.M{
		"user_id":     userID,
		"source_type": sourceType,
		"source_id":   sourceID,
	}).Decode(&event)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *CalendarEventRepository) ListByUser(ctx context.Context, userID string) ([]*domain.CalendarEvent, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "start_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []*domain.CalendarEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *CalendarEventRepository) CountBySource(ctx context.Context, userID, sourceType string) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{"user_id": userID, "source_type": sourceType})
}
