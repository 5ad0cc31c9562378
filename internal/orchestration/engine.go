// Package orchestration grades a question set end to end: performance
// stats, learning history, and recommendations for the next set.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/edu-vault/backend/internal/models"
	"github.com/edu-vault/backend/internal/performance"
	"github.com/edu-vault/backend/internal/recommendation"
	"github.com/edu-vault/backend/internal/rules"
)

// Request carries everything known about the question set being graded.
type Request struct {
	UserID      int64
	TopicID     int64
	BlockID     string
	QuestionIDs []string
	Metadata    map[string]models.QuestionMetadata
	Course      recommendation.CourseContext

	// ReadOnly grades without writing the learning history or storing
	// recommendations. Set when a grading pass for the same topic is already
	// in flight.
	ReadOnly bool
}

type Recommender interface {
	Recommend(ctx context.Context, req recommendation.Request) (*models.Recommendation, error)
}

// QuestionBank stores generated questions and returns their ids in order.
type QuestionBank interface {
	SaveQuestions(ctx context.Context, questions []models.Question) ([]string, error)
}

// EngineState tracks which collaborators are ready.
type EngineState struct {
	ContextReady     bool
	RecommenderReady bool
	BankReady        bool
}

func (s EngineState) AllInitialized() bool {
	return s.ContextReady && s.RecommenderReady && s.BankReady
}

type Engine struct {
	registry      *rules.Registry
	contextEngine *ContextEngine
	recommender   Recommender
	bank          QuestionBank
	state         EngineState
}

func NewEngine(registry *rules.Registry, contextEngine *ContextEngine, recommender Recommender, bank QuestionBank) *Engine {
	e := &Engine{registry: registry, contextEngine: contextEngine, recommender: recommender, bank: bank}
	e.state.ContextReady = contextEngine != nil
	e.state.RecommenderReady = recommender != nil
	e.state.BankReady = bank != nil
	return e
}

func (e *Engine) State() EngineState {
	return e.state
}

// For binds the engine to one question set.
func (e *Engine) For(req Request) *Source {
	return &Source{engine: e, req: req}
}

// Source grades one question set.
type Source struct {
	engine *Engine
	req    Request
}

func (s *Source) Evaluate(ctx context.Context, mode models.LearningMode) (*models.PerformanceReport, error) {
	return s.engine.Process(ctx, s.req, mode)
}

// EvaluateReadOnly grades the same set without recording it.
func (s *Source) EvaluateReadOnly(ctx context.Context, mode models.LearningMode) (*models.PerformanceReport, error) {
	req := s.req
	req.ReadOnly = true
	return s.engine.Process(ctx, req, mode)
}

// Process computes performance stats for mode, records the set in the
// learning history and, when a difficulty failed, fetches recommendations
// and stores them in the question bank. A read-only request stops before
// the recommendations.
func (e *Engine) Process(ctx context.Context, req Request, mode models.LearningMode) (*models.PerformanceReport, error) {
	if !e.state.AllInitialized() {
		return nil, fmt.Errorf("%w: engine not properly initialized", models.ErrOrchestration)
	}

	rule, err := e.registry.Get(mode)
	if err != nil {
		return nil, err
	}
	calc, err := performance.ForMode(e.registry, mode)
	if err != nil {
		return nil, err
	}
	stats, err := calc.Calculate(req.Metadata)
	if err != nil {
		return nil, err
	}

	history, err := e.contextEngine.Record(ctx, req, mode)
	if err != nil {
		return nil, wrapOrchestration("build learning context", err)
	}

	report := &models.PerformanceReport{
		Stats:         stats,
		CorrectCounts: performance.CorrectCounts(req.Metadata),
	}
	if !stats.HasFailed() {
		return report, nil
	}

	if rule.HasPrerequisite() && !history.HasMode(rule.Prerequisite) {
		return nil, fmt.Errorf("%w: learning history does not contain the required prerequisite %s", models.ErrValidation, rule.Prerequisite)
	}
	if req.ReadOnly {
		return report, nil
	}

	rec, err := e.recommender.Recommend(ctx, recommendation.Request{
		Rule:               rule,
		History:            history,
		FailedDifficulties: stats.FailedDifficulties,
		FailedTags:         failedTags(history, rule),
		PreviousAttemptIDs: req.QuestionIDs,
		Course:             req.Course,
	})
	if err != nil {
		return nil, wrapOrchestration("question processing failed", err)
	}
	if err := e.store(ctx, req, rec); err != nil {
		return nil, wrapOrchestration("store recommended questions", err)
	}
	log.Printf("[orchestration] %d recommendations for user %d topic %d", len(rec.Questions), req.UserID, req.TopicID)
	report.Recommendation = rec
	return report, nil
}

// store saves the recommended questions under the graded set's topic and
// block and writes the new ids back onto them.
func (e *Engine) store(ctx context.Context, req Request, rec *models.Recommendation) error {
	if len(rec.Questions) == 0 {
		return nil
	}
	for i := range rec.Questions {
		rec.Questions[i].Topic = req.Course.TopicName
		rec.Questions[i].BlockID = req.BlockID
	}
	ids, err := e.bank.SaveQuestions(ctx, rec.Questions)
	if err != nil {
		return err
	}
	if len(ids) != len(rec.Questions) {
		return fmt.Errorf("question bank returned %d ids for %d questions", len(ids), len(rec.Questions))
	}
	for i := range rec.Questions {
		rec.Questions[i].ID = ids[i]
	}
	return nil
}

func failedTags(history *models.LearningHistory, rule *rules.Rule) []string {
	tags := history.FailedTags(rule.Mode)
	if !rule.HasPrerequisite() {
		return tags
	}
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		seen[t] = true
	}
	for _, t := range history.FailedTags(rule.Prerequisite) {
		if !seen[t] {
			seen[t] = true
			tags = append(tags, t)
		}
	}
	return tags
}

// wrapOrchestration keeps validation errors as they are and tags the rest.
func wrapOrchestration(msg string, err error) error {
	if errors.Is(err, models.ErrValidation) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", models.ErrOrchestration, msg, err)
}
