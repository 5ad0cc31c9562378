// Package performance turns per-question attempt metadata into the
// completion status and ranking of each difficulty level.
package performance

import (
	"fmt"
	"sort"

	"github.com/edu-vault/backend/internal/models"
	"github.com/edu-vault/backend/internal/rules"
)

type Calculator struct {
	requiredCorrect int
}

// NewCalculator returns a calculator that marks a difficulty completed once
// it has requiredCorrect correct answers.
func NewCalculator(requiredCorrect int) *Calculator {
	return &Calculator{requiredCorrect: requiredCorrect}
}

// ForMode builds the calculator for a mode's rule. Mastered has no
// calculator since it never reaches performance evaluation.
func ForMode(registry *rules.Registry, mode models.LearningMode) (*Calculator, error) {
	switch mode {
	case models.ModeNormal, models.ModeRecovery, models.ModeReinforcement, models.ModeReset:
	default:
		return nil, fmt.Errorf("%w: no performance calculator for mode %q", models.ErrValidation, mode)
	}
	rule, err := registry.Get(mode)
	if err != nil {
		return nil, err
	}
	return NewCalculator(rule.RequiredCorrectQuestions), nil
}

func (c *Calculator) RequiredCorrect() int {
	return c.requiredCorrect
}

type group struct {
	correct  int
	attempts int
	count    int
}

// Calculate groups metadata by difficulty. Every difficulty starts
// incomplete; absent ones rank with an average of 0. All three difficulties
// are ranked ascending by mean attempt number.
func (c *Calculator) Calculate(metadata map[string]models.QuestionMetadata) (*models.PerformanceStats, error) {
	groups := make(map[models.Difficulty]*group, len(models.Difficulties))
	for _, d := range models.Difficulties {
		groups[d] = &group{}
	}

	for id, m := range metadata {
		g, ok := groups[m.Difficulty]
		if !ok {
			return nil, fmt.Errorf("%w: question %s has unknown difficulty %q", models.ErrValidation, id, m.Difficulty)
		}
		g.count++
		g.attempts += m.AttemptNumber
		if m.IsCorrect {
			g.correct++
		}
	}

	stats := &models.PerformanceStats{
		DifficultyStatus: make(map[models.Difficulty]models.CompletionStatus, len(models.Difficulties)),
	}
	for _, d := range models.Difficulties {
		g := groups[d]
		status := models.StatusIncomplete
		if g.count > 0 && g.correct >= c.requiredCorrect {
			status = models.StatusCompleted
		}
		stats.DifficultyStatus[d] = status
		if status == models.StatusIncomplete {
			stats.FailedDifficulties = append(stats.FailedDifficulties, d)
		}

		avg := 0.0
		if g.count > 0 {
			avg = float64(g.attempts) / float64(g.count)
		}
		stats.RankedDifficulties = append(stats.RankedDifficulties, models.RankedDifficulty{
			Difficulty:      d,
			AverageAttempts: avg,
		})
	}

	sort.SliceStable(stats.RankedDifficulties, func(i, j int) bool {
		return stats.RankedDifficulties[i].AverageAttempts < stats.RankedDifficulties[j].AverageAttempts
	})
	return stats, nil
}

// CorrectCounts returns the number of correct answers per difficulty.
func CorrectCounts(metadata map[string]models.QuestionMetadata) map[models.Difficulty]int {
	counts := make(map[models.Difficulty]int, len(models.Difficulties))
	for _, m := range metadata {
		if m.IsCorrect {
			counts[m.Difficulty]++
		}
	}
	return counts
}
