package stats

import "github.com/edu-vault/backend/internal/models"

type CompletionStats struct {
	CompletionRate       float64
	IncompleteRate       float64
	EarlyAbandonmentRate float64
}

// AnalyzeCompletion splits the questions into answered, failed before the
// attempt cap, and failed at or past it. The three rates partition the set.
func AnalyzeCompletion(questions []models.QuestionAttemptContext, maxAttempts int) CompletionStats {
	if len(questions) == 0 {
		return CompletionStats{}
	}
	var completed, atCap, early int
	for _, q := range questions {
		switch {
		case q.Attempt.Success:
			completed++
		case q.Attempt.AttemptNumber < maxAttempts:
			early++
		default:
			atCap++
		}
	}
	total := len(questions)
	return CompletionStats{
		CompletionRate:       percent(completed, total),
		IncompleteRate:       percent(atCap, total),
		EarlyAbandonmentRate: percent(early, total),
	}
}
