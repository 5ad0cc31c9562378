package orchestration

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/edu-vault/backend/internal/models"
	"github.com/edu-vault/backend/internal/stats"
)

// HistoryStore persists learning history documents.
type HistoryStore interface {
	GetLearningHistory(ctx context.Context, userID int64, blockID string) (*models.LearningHistory, error)
	SaveLearningHistory(ctx context.Context, history *models.LearningHistory) error
}

// ContextEngine records the graded question set in the learning history.
type ContextEngine struct {
	builder *ContextBuilder
	history HistoryStore
	stats   *stats.Calculator
	now     func() time.Time
}

func NewContextEngine(builder *ContextBuilder, history HistoryStore, calc *stats.Calculator) *ContextEngine {
	return &ContextEngine{builder: builder, history: history, stats: calc, now: time.Now}
}

// Record appends the question set as mode data under mode and saves the
// history unless the request is read-only. Statistics cover only the
// difficulties present in the set.
func (e *ContextEngine) Record(ctx context.Context, req Request, mode models.LearningMode) (*models.LearningHistory, error) {
	history, err := e.history.GetLearningHistory(ctx, req.UserID, req.BlockID)
	if err != nil {
		return nil, fmt.Errorf("load learning history: %w", err)
	}
	if history == nil {
		history = &models.LearningHistory{UserID: req.UserID, BlockID: req.BlockID}
	}
	if history.ModeHistory == nil {
		history.ModeHistory = make(map[models.LearningMode][]models.ModeData)
	}

	contexts, err := e.builder.Build(ctx, req.QuestionIDs, req.Metadata)
	if err != nil {
		return nil, err
	}

	byDifficulty := make(map[models.Difficulty]models.DifficultyStats)
	for _, q := range contexts {
		if _, done := byDifficulty[q.Difficulty]; done {
			continue
		}
		byDifficulty[q.Difficulty] = e.stats.Calculate(contexts, q.Difficulty)
	}

	history.ModeHistory[mode] = append(history.ModeHistory[mode], models.ModeData{
		Questions:       contexts,
		DifficultyStats: byDifficulty,
		RecordedAt:      e.now().UTC(),
	})
	history.UpdatedAt = e.now().UTC()

	if req.ReadOnly {
		return history, nil
	}
	if err := e.history.SaveLearningHistory(ctx, history); err != nil {
		return nil, fmt.Errorf("save learning history: %w", err)
	}
	log.Printf("[orchestration] recorded %d questions in %s history for user %d", len(contexts), mode, req.UserID)
	return history, nil
}
