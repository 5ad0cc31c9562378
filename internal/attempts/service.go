package attempts

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"

	"github.com/edu-vault/backend/internal/gradebook"
	"github.com/edu-vault/backend/internal/metrics"
	"github.com/edu-vault/backend/internal/models"
	"github.com/edu-vault/backend/internal/orchestration"
	"github.com/edu-vault/backend/internal/recommendation"
)

// AttemptStore is the relational state the service reads and writes.
type AttemptStore interface {
	GetAttempts(ctx context.Context, userID, topicID int64) (*models.UserQuestionAttempts, error)
	GetOrCreateAttempts(ctx context.Context, userID, topicID int64, blockID string) (*models.UserQuestionAttempts, error)
	SaveMetadata(ctx context.Context, a *models.UserQuestionAttempts) error
	GetOrCreateQuestionSet(ctx context.Context, userID, topicID int64) (*models.UserQuestionSet, error)
	GetTopicMastery(ctx context.Context, userID, topicID int64) (*models.TopicMastery, error)
	SetDefaultQuestionSet(ctx context.Context, topicID int64, ids []string) error
}

type QuestionRepository interface {
	GetQuestion(ctx context.Context, id string) (*models.Question, error)
	GetQuestionsByIDs(ctx context.Context, ids []string) ([]models.Question, error)
}

type Grader interface {
	EvaluateAndProcess(ctx context.Context, target gradebook.Target, source gradebook.PerformanceSource) (*models.EvaluationResult, error)
}

// SourceFunc binds an orchestration request to a performance source.
type SourceFunc func(req orchestration.Request) gradebook.PerformanceSource

type EvaluationReader interface {
	GetEvaluation(ctx context.Context, userID, topicID int64) (*models.EvaluationResult, error)
}

type Service struct {
	store       AttemptStore
	questions   QuestionRepository
	grader      Grader
	sources     SourceFunc
	evaluations EvaluationReader
	maxAttempts int
}

func NewService(store AttemptStore, questions QuestionRepository, grader Grader, sources SourceFunc, evaluations EvaluationReader, maxAttempts int) *Service {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	return &Service{
		store:       store,
		questions:   questions,
		grader:      grader,
		sources:     sources,
		evaluations: evaluations,
		maxAttempts: maxAttempts,
	}
}

// ── Attempt submission ──────────────────────────────────

// SubmitAttempt records one answer to a question of the user's current set.
func (s *Service) SubmitAttempt(ctx context.Context, userID, topicID int64, questionID string, req models.SubmitAttemptRequest) (*models.SubmitAttemptResponse, error) {
	qs, err := s.store.GetOrCreateQuestionSet(ctx, userID, topicID)
	if err != nil {
		return nil, err
	}
	if qs.GradingMode {
		metrics.RecordAttempt("rejected")
		return nil, fmt.Errorf("%w: topic %d", models.ErrGradingInProgress, topicID)
	}
	if !slices.Contains(qs.QuestionListIDs, questionID) {
		return nil, fmt.Errorf("%w: question %s is not in the current question set", models.ErrNotFound, questionID)
	}

	question, err := s.questions.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if req.ChoiceIndex < 0 || req.ChoiceIndex >= len(question.Choices) {
		return nil, fmt.Errorf("%w: choice index %d out of range", models.ErrValidation, req.ChoiceIndex)
	}

	record, err := s.store.GetOrCreateAttempts(ctx, userID, topicID, question.BlockID)
	if err != nil {
		return nil, err
	}
	if record.BlockID == "" {
		record.BlockID = question.BlockID
	}

	current := record.CurrentMetadata()
	meta, seen := current[questionID]
	switch {
	case seen && meta.IsCorrect:
		metrics.RecordAttempt("rejected")
		return nil, fmt.Errorf("%w: question %s", models.ErrAlreadyCorrect, questionID)
	case seen && meta.AttemptNumber >= s.maxAttempts:
		metrics.RecordAttempt("rejected")
		return nil, fmt.Errorf("%w: question %s", models.ErrAttemptsExhausted, questionID)
	}

	correct := question.IsCorrectChoice(req.ChoiceIndex)
	if !seen {
		meta = models.QuestionMetadata{
			QuestionID: questionID,
			Difficulty: question.Difficulty,
			Topic:      question.Topic,
		}
	}
	meta.AttemptNumber++
	meta.IsCorrect = correct
	if req.TimeSpent > 0 {
		meta.TimeSpent += req.TimeSpent
	}
	current[questionID] = meta

	if err := s.store.SaveMetadata(ctx, record); err != nil {
		return nil, err
	}

	outcome := "incorrect"
	if correct {
		outcome = "correct"
	}
	metrics.RecordAttempt(outcome)

	resp := &models.SubmitAttemptResponse{
		QuestionID:        questionID,
		IsCorrect:         correct,
		AttemptNumber:     meta.AttemptNumber,
		AttemptsRemaining: max(s.maxAttempts-meta.AttemptNumber, 0),
	}
	if correct || resp.AttemptsRemaining == 0 {
		resp.Explanation = question.Solution.Explanation
	}
	return resp, nil
}

// ── Assessment ──────────────────────────────────────────

// PrepareAssessment makes sure every question in the set has metadata in the
// current version, seeding unanswered ones with attempt number 0.
func (s *Service) PrepareAssessment(ctx context.Context, userID, topicID int64) (*models.UserQuestionAttempts, *models.UserQuestionSet, error) {
	qs, err := s.store.GetOrCreateQuestionSet(ctx, userID, topicID)
	if err != nil {
		return nil, nil, err
	}
	if len(qs.QuestionListIDs) == 0 {
		return nil, nil, fmt.Errorf("%w: question set for topic %d is empty", models.ErrValidation, topicID)
	}

	record, err := s.store.GetOrCreateAttempts(ctx, userID, topicID, "")
	if err != nil {
		return nil, nil, err
	}
	current := record.CurrentMetadata()

	var missing []string
	for _, id := range qs.QuestionListIDs {
		if _, ok := current[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return record, qs, nil
	}

	found, err := s.questions.GetQuestionsByIDs(ctx, missing)
	if err != nil {
		return nil, nil, err
	}
	fetched := make(map[string]models.Question, len(found))
	for _, q := range found {
		fetched[q.ID] = q
	}
	var invalid []string
	for _, id := range missing {
		if _, ok := fetched[id]; !ok {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return nil, nil, fmt.Errorf("%w: questions with IDs %s not found", models.ErrValidation, strings.Join(invalid, ", "))
	}

	for _, id := range missing {
		q := fetched[id]
		current[id] = models.QuestionMetadata{
			QuestionID: id,
			Difficulty: q.Difficulty,
			Topic:      q.Topic,
		}
		if record.BlockID == "" {
			record.BlockID = q.BlockID
		}
	}
	if err := s.store.SaveMetadata(ctx, record); err != nil {
		return nil, nil, err
	}
	log.Printf("[attempts] seeded %d unanswered questions for user %d topic %d", len(missing), userID, topicID)
	return record, qs, nil
}

// GradeAssessment evaluates the current question set and queues the side
// effects of the result.
func (s *Service) GradeAssessment(ctx context.Context, userID, topicID int64, req models.GradeAssessmentRequest) (*models.EvaluationResult, error) {
	record, qs, err := s.PrepareAssessment(ctx, userID, topicID)
	if err != nil {
		return nil, err
	}

	blockID := req.BlockID
	if blockID == "" {
		blockID = record.BlockID
	}
	if blockID == "" {
		return nil, fmt.Errorf("%w: block_id is required", models.ErrValidation)
	}
	mode, err := models.ParseLearningMode(string(record.CurrentLearningMode))
	if err != nil {
		return nil, err
	}

	current := record.CurrentMetadata()
	metadata := make(map[string]models.QuestionMetadata, len(qs.QuestionListIDs))
	topic := ""
	for _, id := range qs.QuestionListIDs {
		metadata[id] = current[id]
		if topic == "" {
			topic = current[id].Topic
		}
	}

	oreq := orchestration.Request{
		UserID:      userID,
		TopicID:     topicID,
		BlockID:     blockID,
		QuestionIDs: qs.QuestionListIDs,
		Metadata:    metadata,
		Course:      recommendation.CourseContext{TopicName: topic},
	}
	target := gradebook.Target{UserID: userID, TopicID: topicID, BlockID: blockID, Mode: mode}

	result, err := s.grader.EvaluateAndProcess(ctx, target, s.sources(oreq))
	if err != nil {
		return nil, err
	}
	log.Printf("[attempts] graded user %d topic %d in %s: passed=%v next=%s",
		userID, topicID, mode, result.Passed, result.NextMode.ModeName)
	return result, nil
}

// SetDefaultQuestionSet validates the ids against the question bank before
// storing them as the topic's starting set.
func (s *Service) SetDefaultQuestionSet(ctx context.Context, topicID int64, req models.DefaultQuestionSetRequest) error {
	if len(req.QuestionIDs) == 0 {
		return fmt.Errorf("%w: question_ids is required", models.ErrValidation)
	}
	found, err := s.questions.GetQuestionsByIDs(ctx, req.QuestionIDs)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(found))
	for _, q := range found {
		known[q.ID] = true
	}
	var invalid []string
	for _, id := range req.QuestionIDs {
		if !known[id] {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("%w: questions with IDs %s not found", models.ErrValidation, strings.Join(invalid, ", "))
	}
	if err := s.store.SetDefaultQuestionSet(ctx, topicID, req.QuestionIDs); err != nil {
		return err
	}
	log.Printf("[attempts] default question set for topic %d now has %d questions", topicID, len(req.QuestionIDs))
	return nil
}

// ── Progress ────────────────────────────────────────────

func (s *Service) GetProgress(ctx context.Context, userID, topicID int64) (*models.ProgressResponse, error) {
	record, err := s.store.GetAttempts(ctx, userID, topicID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: no attempts for topic %d", models.ErrNotFound, topicID)
	}

	resp := &models.ProgressResponse{
		TopicID:             topicID,
		CurrentLearningMode: record.CurrentLearningMode,
		CurrentVersion:      record.CurrentVersion,
		Questions:           record.CurrentMetadata(),
	}
	if desc, ok := record.Descriptions[record.CurrentVersion]; ok {
		resp.Description = &desc
	}

	mastery, err := s.store.GetTopicMastery(ctx, userID, topicID)
	if err != nil {
		return nil, err
	}
	resp.Mastery = mastery

	qs, err := s.store.GetOrCreateQuestionSet(ctx, userID, topicID)
	switch {
	case errors.Is(err, models.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		resp.GradingMode = qs.GradingMode
	}
	return resp, nil
}

func (s *Service) GetEvaluation(ctx context.Context, userID, topicID int64) (*models.EvaluationResult, error) {
	if s.evaluations == nil {
		return nil, fmt.Errorf("%w: evaluation cache disabled", models.ErrNotFound)
	}
	return s.evaluations.GetEvaluation(ctx, userID, topicID)
}
