package stats

import "github.com/edu-vault/backend/internal/models"

// FilterByDifficulty keeps the questions at difficulty, preserving order.
func FilterByDifficulty(questions []models.QuestionAttemptContext, difficulty models.Difficulty) []models.QuestionAttemptContext {
	var out []models.QuestionAttemptContext
	for _, q := range questions {
		if q.Difficulty == difficulty {
			out = append(out, q)
		}
	}
	return out
}
