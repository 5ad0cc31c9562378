package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edu-vault/backend/internal/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Repository stores one learning history document per (user, block).
type Repository struct {
	collection *mongo.Collection
}

func NewRepository(db *mongo.Database, collection string) *Repository {
	return &Repository{collection: db.Collection(collection)}
}

func key(userID int64, blockID string) bson.M {
	return bson.M{"userId": userID, "blockId": blockID}
}

// InitializeIndexes creates the unique (userId, blockId) index.
func (r *Repository) InitializeIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "userId", Value: 1},
				{Key: "blockId", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "updatedAt", Value: -1}},
		},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create learning history indexes: %w", err)
	}
	return nil
}

// GetLearningHistory returns nil, nil when the user has no history for the block.
func (r *Repository) GetLearningHistory(ctx context.Context, userID int64, blockID string) (*models.LearningHistory, error) {
	var h models.LearningHistory
	err := r.collection.FindOne(ctx, key(userID, blockID)).Decode(&h)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: get learning history: %w", models.ErrDatabaseQuery, err)
	}
	return &h, nil
}

// SaveLearningHistory replaces the whole document, creating it when missing.
func (r *Repository) SaveLearningHistory(ctx context.Context, h *models.LearningHistory) error {
	if h.UpdatedAt.IsZero() {
		h.UpdatedAt = time.Now().UTC()
	}
	_, err := r.collection.ReplaceOne(ctx, key(h.UserID, h.BlockID), h, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("%w: save learning history: %w", models.ErrDatabaseUpdate, err)
	}
	return nil
}

// RecordEvaluation appends an evaluation summary without touching the mode history.
func (r *Repository) RecordEvaluation(ctx context.Context, userID int64, blockID string, s models.EvaluationSummary) error {
	update := bson.M{
		"$push": bson.M{"evaluations": s},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	_, err := r.collection.UpdateOne(ctx, key(userID, blockID), update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("%w: record evaluation: %w", models.ErrDatabaseUpdate, err)
	}
	return nil
}
