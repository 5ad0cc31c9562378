// Package gradebook evaluates a finished question set, decides the next
// learning mode and fans the outcome out to the records it affects.
package gradebook

import (
	"context"
	"fmt"

	"github.com/edu-vault/backend/internal/metrics"
	"github.com/edu-vault/backend/internal/models"
	"github.com/edu-vault/backend/internal/progression"
	"github.com/edu-vault/backend/internal/rules"
)

const StatusSuccess = "success"

// PerformanceSource grades the user's current question set.
type PerformanceSource interface {
	Evaluate(ctx context.Context, mode models.LearningMode) (*models.PerformanceReport, error)
}

type Evaluation struct {
	HasFailed      bool
	Recommendation *models.Recommendation
	Stats          *models.PerformanceStats
	CorrectCounts  map[models.Difficulty]int
}

// PerformanceEvaluator reduces a performance report to pass/fail.
type PerformanceEvaluator struct {
	source PerformanceSource
}

func NewPerformanceEvaluator(source PerformanceSource) *PerformanceEvaluator {
	return &PerformanceEvaluator{source: source}
}

func (e *PerformanceEvaluator) Evaluate(ctx context.Context, mode models.LearningMode) (*Evaluation, error) {
	report, err := e.source.Evaluate(ctx, mode)
	if err != nil {
		return nil, err
	}
	if report == nil || report.Stats == nil {
		return nil, fmt.Errorf("%w: performance source returned no stats", models.ErrOrchestration)
	}
	return &Evaluation{
		HasFailed:      report.Stats.HasFailed(),
		Recommendation: report.Recommendation,
		Stats:          report.Stats,
		CorrectCounts:  report.CorrectCounts,
	}, nil
}

type Gradebook struct {
	registry  *rules.Registry
	evaluator *PerformanceEvaluator
}

func New(registry *rules.Registry, source PerformanceSource) *Gradebook {
	return &Gradebook{registry: registry, evaluator: NewPerformanceEvaluator(source)}
}

// Evaluate grades the current question set. A mastered user passes without
// the performance source being consulted.
func (g *Gradebook) Evaluate(ctx context.Context, mode models.LearningMode) (*models.EvaluationResult, error) {
	if mode == models.ModeMastered {
		metrics.RecordEvaluation(string(mode), true)
		return masteredResult(), nil
	}

	state, err := progression.NewContext(g.registry, mode)
	if err != nil {
		return nil, err
	}

	eval, err := g.evaluator.Evaluate(ctx, mode)
	if err != nil {
		return nil, err
	}

	next, err := state.NextMode(eval.Stats)
	if err != nil {
		return nil, err
	}
	prev := state.PreviousMode(eval.Stats, eval.CorrectCounts)

	nextRule, err := g.registry.Get(next.ModeName)
	if err != nil {
		return nil, err
	}

	result := &models.EvaluationResult{
		Status:           StatusSuccess,
		Passed:           !eval.HasFailed,
		NextMode:         next,
		PreviousMode:     &prev,
		ModeGuidance:     progression.ModeGuidance(next.ModeName),
		Guidance:         progression.Guidance(nextRule, len(eval.Stats.FailedDifficulties)),
		PerformanceStats: eval.Stats,
		AIRecommendation: eval.Recommendation,
	}

	metrics.RecordEvaluation(string(mode), result.Passed)
	metrics.RecordTransition(string(mode), string(next.ModeName))
	return result, nil
}

func masteredResult() *models.EvaluationResult {
	return &models.EvaluationResult{
		Status: StatusSuccess,
		Passed: true,
		NextMode: models.NextMode{
			Guidance:     progression.MasteredGuidance,
			ModeGuidance: progression.ModeGuidance(models.ModeMastered),
			ModeName:     models.ModeMastered,
		},
		ModeGuidance: progression.ModeGuidance(models.ModeMastered),
		Guidance:     progression.MasteredGuidance,
	}
}
