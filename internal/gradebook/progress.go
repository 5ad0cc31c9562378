package gradebook

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/edu-vault/backend/internal/metrics"
	"github.com/edu-vault/backend/internal/models"
	"github.com/edu-vault/backend/internal/rules"
)

// ResultCache keeps the latest evaluation per user and topic.
type ResultCache interface {
	SaveEvaluation(ctx context.Context, userID, topicID int64, result *models.EvaluationResult) error
}

// ProgressManager ties evaluation to side-effect dispatch, dispatching at
// most once per grading pass.
type ProgressManager struct {
	registry   *rules.Registry
	guard      GradingGuard
	dispatcher Dispatcher
	cache      ResultCache
	now        func() time.Time
}

func NewProgressManager(registry *rules.Registry, guard GradingGuard, dispatcher Dispatcher, cache ResultCache) *ProgressManager {
	return &ProgressManager{
		registry:   registry,
		guard:      guard,
		dispatcher: dispatcher,
		cache:      cache,
		now:        time.Now,
	}
}

// ReadOnlyEvaluator grades a question set without recording anything.
type ReadOnlyEvaluator interface {
	EvaluateReadOnly(ctx context.Context, mode models.LearningMode) (*models.PerformanceReport, error)
}

type readOnlySource struct {
	ReadOnlyEvaluator
}

func (s readOnlySource) Evaluate(ctx context.Context, mode models.LearningMode) (*models.PerformanceReport, error) {
	return s.EvaluateReadOnly(ctx, mode)
}

// readOnly returns the non-recording form of source when it has one.
func readOnly(source PerformanceSource) PerformanceSource {
	if ro, ok := source.(ReadOnlyEvaluator); ok {
		return readOnlySource{ro}
	}
	return source
}

// EvaluateAndProcess claims the target's grading flag, grades the question
// set and queues the side effects. A caller that loses the claim gets a
// read-only grade and dispatches nothing.
func (m *ProgressManager) EvaluateAndProcess(ctx context.Context, target Target, source PerformanceSource) (*models.EvaluationResult, error) {
	entered, err := m.guard.EnterGradingMode(ctx, target.UserID, target.TopicID)
	if err != nil {
		return nil, fmt.Errorf("enter grading mode: %w", err)
	}
	if !entered {
		log.Printf("[gradebook] user %d topic %d already grading, skipping dispatch", target.UserID, target.TopicID)
		metrics.RecordShortCircuit()
		return New(m.registry, readOnly(source)).Evaluate(ctx, target.Mode)
	}

	result, err := New(m.registry, source).Evaluate(ctx, target.Mode)
	if err != nil {
		m.release(ctx, target, "failed evaluation")
		return nil, err
	}
	m.cacheResult(ctx, target, result)

	job := &SideEffectJob{
		ID:         uuid.NewString(),
		Target:     target,
		Result:     *result,
		EnqueuedAt: m.now().UTC(),
	}
	if err := m.dispatcher.Dispatch(ctx, job); err != nil {
		m.release(ctx, target, "failed dispatch")
		return nil, fmt.Errorf("%w: dispatch side effects: %w", models.ErrProcessingFailed, err)
	}
	return result, nil
}

func (m *ProgressManager) release(ctx context.Context, target Target, reason string) {
	if err := exitGradingMode(ctx, m.guard, target); err != nil {
		log.Printf("[gradebook] releasing grading mode after %s: %v", reason, err)
	}
}

func (m *ProgressManager) cacheResult(ctx context.Context, target Target, result *models.EvaluationResult) {
	if m.cache == nil {
		return
	}
	if err := m.cache.SaveEvaluation(ctx, target.UserID, target.TopicID, result); err != nil {
		log.Printf("[gradebook] caching evaluation for user %d topic %d: %v", target.UserID, target.TopicID, err)
	}
}
