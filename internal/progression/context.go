package progression

import (
	"fmt"

	"github.com/edu-vault/backend/internal/models"
	"github.com/edu-vault/backend/internal/rules"
)

// Context evaluates transitions out of the mode a user was graded in.
type Context struct {
	registry *rules.Registry
	current  models.LearningMode
	rule     *rules.Rule
}

func NewContext(registry *rules.Registry, current models.LearningMode) (*Context, error) {
	if _, err := lookup(current); err != nil {
		return nil, err
	}
	rule, err := registry.Get(current)
	if err != nil {
		return nil, err
	}
	return &Context{registry: registry, current: current, rule: rule}, nil
}

// Next decides the mode after grading. Any failed difficulty moves along the
// failure cycle; a clean pass goes to mastered. Mastered always stays put.
func (c *Context) Next(stats *models.PerformanceStats) (models.LearningMode, error) {
	if c.current == models.ModeMastered {
		return models.ModeMastered, nil
	}
	if stats == nil || !stats.HasFailed() {
		return models.ModeMastered, nil
	}
	return NextOnFailure(c.current)
}

// NextMode describes the next mode. Score and total use the next mode's rule
// scaled by how many difficulty levels failed this time.
func (c *Context) NextMode(stats *models.PerformanceStats) (models.NextMode, error) {
	nextName, err := c.Next(stats)
	if err != nil {
		return models.NextMode{}, err
	}
	next, err := c.registry.Get(nextName)
	if err != nil {
		return models.NextMode{}, err
	}

	failed := 0
	if stats != nil {
		failed = len(stats.FailedDifficulties)
	}
	required, total := requirements(next, failed)
	return models.NextMode{
		Guidance:       Guidance(next, failed),
		ModeGuidance:   ModeGuidance(nextName),
		RequiredScore:  required,
		TotalQuestions: total,
		ModeName:       nextName,
	}, nil
}

// PreviousMode describes the mode that was just graded using its own rule,
// with one score entry per failed and per passed difficulty.
func (c *Context) PreviousMode(stats *models.PerformanceStats, correct map[models.Difficulty]int) models.PreviousMode {
	levels := 0
	if stats != nil {
		levels = len(stats.RankedDifficulties)
	}
	required, total := requirements(c.rule, levels)
	prev := models.PreviousMode{
		Guidance:           Guidance(c.rule, levels),
		ModeGuidance:       ModeGuidance(c.current),
		RequiredScore:      required,
		TotalQuestions:     total,
		ModeName:           c.current,
		FailedDifficulties: []models.DifficultyScore{},
		PassedDifficulties: []models.DifficultyScore{},
	}
	if stats == nil {
		return prev
	}
	for _, d := range models.Difficulties {
		switch stats.DifficultyStatus[d] {
		case models.StatusIncomplete:
			prev.FailedDifficulties = append(prev.FailedDifficulties, c.score(d, "failed", correct))
		case models.StatusCompleted:
			prev.PassedDifficulties = append(prev.PassedDifficulties, c.score(d, "success", correct))
		}
	}
	return prev
}

func (c *Context) score(d models.Difficulty, status string, correct map[models.Difficulty]int) models.DifficultyScore {
	pass := c.rule.PassRequirement.Reduced()
	return models.DifficultyScore{
		Difficulty:    d,
		Status:        status,
		RequiredScore: pass.String(),
		UsersScore:    fmt.Sprintf("%d/%d", correct[d], pass.Den),
	}
}

// Guidance is the advancement message for rule over n difficulty levels.
func Guidance(rule *rules.Rule, n int) string {
	if rule.Mode == models.ModeMastered {
		return MasteredGuidance
	}
	required, total := requirements(rule, n)
	return fmt.Sprintf("To advance, correctly answer at least %d out of %d questions.", required, total)
}

func requirements(rule *rules.Rule, n int) (int, int) {
	return rule.RequiredScore(n), rule.TotalQuestions(n)
}
