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

// EventMappingRepository persists (user, provider, source_uid) →
// provider_event_id rows for providers that assign their own event ids.
type EventMappingRepository struct {
	coll *mongo.Collection
}

func NewEventMappingRepository(ctx context.Context, db *mongo.Database) (domain.EventMappingRepository, error) {
	coll := db.Collection(EventMappingsCollection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "provider", Value: 1}, {Key: "source_uid", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create provider_event_mappings index: %w", err)
	}
	return &EventMappingRepository{coll: coll}, nil
}

func (r *EventMappingRepository) Upsert(ctx context.Context, mapping *domain.EventMapping) error {
	now := time.Now().UTC()
	filter := bson.M{
		"user_id":    mapping.UserID,
		"provider":   mapping.Provider,
		"source_uid": mapping.SourceUID,
	}
	update := bson.M{
		"$set": bson.M{
			"provider_event_id": mapping.ProviderEventID,
			"updated_at":        now,
		},
		"$setOnInsert": bson.M{
			"_id":        bson.NewObjectID().Hex(),
			"user_id":    mapping.UserID,
			"provider":   mapping.Provider,
			"source_uid": mapping.SourceUID,
			"created_at": now,
		},
	}
	_, err := r.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	return err
}

func (r *EventMappingRepository) Get(ctx context.Context, userID string, provider domain.Provider, sourceUID string) (*domain.EventMapping, error) {
	var mapping domain.EventMapping
	err := r.coll.FindOne(ctx, bson.M{
		"user_id":    userID,
		"provider":   provider,
		"source_uid": sourceUID,
	}).Decode(&mapping)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrMappingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

func (r *EventMappingRepository) ListByUser(ctx context.Context, userID string, provider domain.Provider) ([]*domain.EventMapping, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"user_id": userID, "provider": provider})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var mappings []*domain.EventMapping
	if err := cursor.All(ctx, &mappings); err != nil {
		return nil, err
	}
	return mappings, nil
}

func (r *EventMappingRepository) DeleteByUser(ctx context.Context, userID string, provider domain.Provider) error {
	_, err := r.coll.DeleteMany(ctx, bson.M{"user_id": userID, "provider": provider})
	return err
}
