package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/edu-vault/backend/internal/models"
	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 24 * time.Hour

// EvaluationCache keeps the latest evaluation result per user and topic.
type EvaluationCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewEvaluationCache(client *redis.Client, ttl time.Duration) *EvaluationCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &EvaluationCache{client: client, ttl: ttl}
}

func evaluationKey(userID, topicID int64) string {
	return fmt.Sprintf("evaluation:%d:%d", userID, topicID)
}

func (c *EvaluationCache) SaveEvaluation(ctx context.Context, userID, topicID int64, result *models.EvaluationResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal evaluation: %w", err)
	}
	if err := c.client.Set(ctx, evaluationKey(userID, topicID), body, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache evaluation: %w", err)
	}
	return nil
}

// GetEvaluation returns ErrNotFound when nothing is cached.
func (c *EvaluationCache) GetEvaluation(ctx context.Context, userID, topicID int64) (*models.EvaluationResult, error) {
	body, err := c.client.Get(ctx, evaluationKey(userID, topicID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: no evaluation for topic %d", models.ErrNotFound, topicID)
	}
	if err != nil {
		return nil, fmt.Errorf("read cached evaluation: %w", err)
	}

	var result models.EvaluationResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode cached evaluation: %w", err)
	}
	return &result, nil
}
