package orchestration

import (
	"context"
	"fmt"

	"github.com/edu-vault/backend/internal/models"
)

// QuestionSource loads question documents by id.
type QuestionSource interface {
	GetQuestionsByIDs(ctx context.Context, ids []string) ([]models.Question, error)
}

// ContextBuilder joins question documents with attempt metadata.
type ContextBuilder struct {
	questions        QuestionSource
	defaultTimeSpent int
}

func NewContextBuilder(questions QuestionSource, defaultTimeSpent int) *ContextBuilder {
	return &ContextBuilder{questions: questions, defaultTimeSpent: defaultTimeSpent}
}

// Build returns one context per question found. A question without attempt
// metadata is a configuration error.
func (b *ContextBuilder) Build(ctx context.Context, ids []string, metadata map[string]models.QuestionMetadata) ([]models.QuestionAttemptContext, error) {
	questions, err := b.questions.GetQuestionsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	contexts := make([]models.QuestionAttemptContext, 0, len(questions))
	for _, q := range questions {
		m, ok := metadata[q.ID]
		if !ok {
			return nil, fmt.Errorf("%w: question %s not found in attempt data", models.ErrValidation, q.ID)
		}
		spent := m.TimeSpent
		if spent <= 0 {
			spent = b.defaultTimeSpent
		}
		contexts = append(contexts, models.QuestionAttemptContext{
			ID:         q.ID,
			Difficulty: q.Difficulty,
			Tags:       q.Tags,
			Attempt: models.Attempt{
				Success:       m.IsCorrect,
				TimeSpent:     spent,
				AttemptNumber: m.AttemptNumber,
			},
		})
	}
	return contexts, nil
}
