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
	syncerrors "github.com/labkit-dev/calsync/errors"
)

// ProviderTokenRepository persists OAuth credentials in the
// provider_tokens collection, one document per (user, provider).
type ProviderTokenRepository struct {
	coll *mongo.Collection
}

func NewProviderTokenRepository(ctx context.Context, db *mongo.Database) (domain.ProviderTokenRepository, error) {
	coll := db.Collection(ProviderTokensCollection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "provider", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create provider_tokens index: %w", err)
	}
	return &ProviderTokenRepository{coll: coll}, nil
}

func (r *ProviderTokenRepository) Upsert(ctx context.Context, token *domain.ProviderToken) error {
	now := time.Now().UTC()
	token.UpdatedAt = now
	filter := bson.M{"user_id": token.UserID, "provider": token.Provider}
	update := bson.M{
		"$set": bson.M{
			"access_token":  token.AccessToken,
			"refresh_token": token.RefreshToken,
			"expires_at":    token.ExpiresAt,
			"account_email": token.AccountEmail,
			"calendar_id":   token.CalendarID,
			"updated_at":    now,
		},
		"$setOnInsert": bson.M{
			"_id":        bson.NewObjectID().Hex(),
			"user_id":    token.UserID,
			"provider":   token.Provider,
			"created_at": now,
		},
	}
	_, err := r.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	return err
}

func (r *ProviderTokenRepository) Get(ctx context.Context, userID string, provider domain.Provider) (*domain.ProviderToken, error) {
	var token domain.ProviderToken
	err := r.coll.FindOne(ctx, bson.M{"user_id": userID, "provider": provider}).Decode(&token)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, syncerrors.ErrNotConnected
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *ProviderTokenRepository) UpdateCredentials(ctx context.Context, userID string, provider domain.Provider, accessToken, refreshToken string, expiresAt time.Time) error {
	set := bson.M{
		"access_token": accessToken,
		"expires_at":   expiresAt,
		"updated_at":   time.Now().UTC(),
	}
	// Some providers rotate the refresh token on every refresh; keep the
	// stored one when the provider returned nothing.
	if refreshToken != "" {
		set["refresh_token"] = refreshToken
	}
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"user_id": userID, "provider": provider},
		bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return syncerrors.ErrNotConnected
	}
	return nil
}

func (r *ProviderTokenRepository) Delete(ctx context.Context, userID string, provider domain.Provider) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"user_id": userID, "provider": provider})
	return err
}
