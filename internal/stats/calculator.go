// Package stats aggregates per-difficulty attempt statistics for the
// learning history and the recommendation prompt.
package stats

import "github.com/edu-vault/backend/internal/models"

const DefaultMaxAttempts = 3

type Calculator struct {
	maxAttempts int
}

func NewCalculator(maxAttempts int) *Calculator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Calculator{maxAttempts: maxAttempts}
}

// Calculate builds the statistics for one difficulty. No questions at that
// difficulty, or no attempts on them, yields the zero record.
func (c *Calculator) Calculate(questions []models.QuestionAttemptContext, difficulty models.Difficulty) models.DifficultyStats {
	filtered := FilterByDifficulty(questions, difficulty)
	if len(filtered) == 0 {
		return Empty()
	}
	total := TotalAttempts(filtered)
	if total == 0 {
		return Empty()
	}

	rates := AttemptRates(filtered)
	times := AnalyzeTime(filtered)
	completion := AnalyzeCompletion(filtered, c.maxAttempts)

	return models.DifficultyStats{
		TotalAttempts:            total,
		SuccessRate:              SuccessRate(filtered),
		FirstAttemptSuccessRate:  rates.First,
		SecondAttemptSuccessRate: rates.Second,
		ThirdAttemptSuccessRate:  rates.Third,
		AverageTime:              times.AverageFirstAttemptTime,
		AverageFirstAttemptTime:  times.AverageFirstAttemptTime,
		AverageSecondAttemptTime: times.AverageSecondAttemptTime,
		AverageThirdAttemptTime:  times.AverageThirdAttemptTime,
		TimeDistribution:         times.Distribution,
		CompletionRate:           completion.CompletionRate,
		IncompleteRate:           completion.IncompleteRate,
		EarlyAbandonmentRate:     completion.EarlyAbandonmentRate,
		FailedTags:               FailedTags(filtered),
		AverageAttemptsToSuccess: AverageAttemptsToSuccess(filtered),
	}
}

// CalculateAll computes the statistics for every difficulty level.
func (c *Calculator) CalculateAll(questions []models.QuestionAttemptContext) map[models.Difficulty]models.DifficultyStats {
	out := make(map[models.Difficulty]models.DifficultyStats, len(models.Difficulties))
	for _, d := range models.Difficulties {
		out[d] = c.Calculate(questions, d)
	}
	return out
}

// Empty is the all-zero record used when a difficulty has no data.
func Empty() models.DifficultyStats {
	return models.DifficultyStats{FailedTags: []string{}}
}
