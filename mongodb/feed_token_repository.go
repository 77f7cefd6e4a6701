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

// FeedTokenRepository stores published-feed URL tokens, one per user.
type FeedTokenRepository struct {
	coll *mongo.Collection
}

func NewFeedTokenRepository(ctx context.Context, db *mongo.Database) (domain.FeedTokenRepository, error) {
	coll := db.Collection(FeedTokensCollection)
	for _, model := range []mongo.IndexModel{
		{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	} {
		if _, err := coll.Indexes().CreateOne(ctx, model); err != nil {
			return nil, fmt.Errorf("failed to create feed_tokens index: %w", err)
		}
	}
	return &FeedTokenRepository{coll: coll}, nil
}

func (r *FeedTokenRepository) GetByToken(ctx context.Context, token string) (*domain.FeedToken, error) {
	var ft domain.FeedToken
	err := r.coll.FindOne(ctx, bson.M{"token": token}).Decode(&ft)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrFeedTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ft, nil
}

func (r *FeedTokenRepository) GetByUser(ctx context.Context, userID string) (*domain.FeedToken, error) {
	var ft domain.FeedToken
	err := r.coll.FindOne(ctx, bson.M{"user_id": userID}).Decode(&ft)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrFeedTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ft, nil
}

func (r *FeedTokenRepository) Replace(ctx context.Context, userID, token string) (*domain.FeedToken, error) {
	now := time.Now().UTC()
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$set":         bson.M{"token": token, "created_at": now},
		"$setOnInsert": bson.M{"_id": bson.NewObjectID().Hex(), "user_id": userID},
	}
	_, err := r.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return nil, err
	}
	return r.GetByUser(ctx, userID)
}
