package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/labkit-dev/calsync/domain"
)

// OperatorJobRepository stores recurring automation jobs.
type OperatorJobRepository struct {
	coll *mongo.Collection
}

func NewOperatorJobRepository(db *mongo.Database) domain.OperatorJobRepository {
	return &OperatorJobRepository{coll: db.Collection(OperatorJobsCollection)}
}

func (r *OperatorJobRepository) Create(ctx context.Context, job *domain.OperatorJob) error {
	now := time.Now().UTC()
	if job.ID == "" {
		job.ID = bson.NewObjectID().Hex()
	}
	job.CreatedAt = now
	job.UpdatedAt = now
	_, err := r.coll.InsertOne(ctx, job)
	return err
}

func (r *OperatorJobRepository) Get(ctx context.Context, userID, id string) (*domain.OperatorJob, error) {
	var job domain.OperatorJob
	err := r.coll.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *OperatorJobRepository) Update(ctx context.Context, job *domain.OperatorJob) error {
	job.UpdatedAt = time.Now().UTC()
	result, err := r.coll.ReplaceOne(ctx, bson.M{"_id": job.ID, "user_id": job.UserID}, job)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *OperatorJobRepository) Delete(ctx context.Context, userID, id string) error {
	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *OperatorJobRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.OperatorJob, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var jobs []*domain.OperatorJob
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}
