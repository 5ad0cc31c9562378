package gradebook

import (
	"context"
	"time"

	"github.com/edu-vault/backend/internal/models"
)

// Target identifies the user and topic a grading pass belongs to.
type Target struct {
	UserID  int64               `json:"user_id"`
	TopicID int64               `json:"topic_id"`
	BlockID string              `json:"block_id"`
	Mode    models.LearningMode `json:"mode"`
}

// Store is the transactional write surface observers share. Implementations
// must tolerate concurrent calls from observers of the same batch.
type Store interface {
	AdvanceAttempt(ctx context.Context, userID, topicID int64, mode models.LearningMode, desc models.AttemptDescription) (string, error)
	// ReplaceQuestionSet stores ids as the user's next set; no ids empties it.
	ReplaceQuestionSet(ctx context.Context, userID, topicID int64, ids []string) error
	SaveTopicMastery(ctx context.Context, mastery models.TopicMastery) error
}

// Observer reacts to one evaluation result. Observers in a batch run
// concurrently and must not depend on one another.
type Observer interface {
	Name() string
	Notify(ctx context.Context, store Store, job *SideEffectJob) error
}

// ── User attempt ───────────────────────────────────────────

type UserAttemptObserver struct{}

func (UserAttemptObserver) Name() string { return "user_attempt" }

// Notify opens the next attempt version in the next mode.
func (UserAttemptObserver) Notify(ctx context.Context, store Store, job *SideEffectJob) error {
	next := job.Result.NextMode
	status := "Not Started"
	if job.Result.Passed {
		status = "Completed"
	}
	_, err := store.AdvanceAttempt(ctx, job.Target.UserID, job.Target.TopicID, next.ModeName, models.AttemptDescription{
		Status:       status,
		LearningMode: next.ModeName,
		Guidance:     next.Guidance,
		ModeGuidance: next.ModeGuidance,
	})
	return err
}

// ── Question set ───────────────────────────────────────────

type QuestionSetObserver struct{}

func (QuestionSetObserver) Name() string { return "user_question_set" }

// Notify makes the recommended questions the next set. Without
// recommendations the list is emptied and the topic default is seeded on
// the next read.
func (QuestionSetObserver) Notify(ctx context.Context, store Store, job *SideEffectJob) error {
	return store.ReplaceQuestionSet(ctx, job.Target.UserID, job.Target.TopicID, job.Result.RecommendedQuestionIDs())
}

// ── Topic mastery ──────────────────────────────────────────

const (
	totalDifficulties   = 3
	pointsPerDifficulty = 100 / totalDifficulties
	fullMasteryPoints   = 100
)

type TopicMasteryObserver struct{}

func (TopicMasteryObserver) Name() string { return "topic_mastery" }

func (TopicMasteryObserver) Notify(ctx context.Context, store Store, job *SideEffectJob) error {
	points, status := MasteryFor(job.Result)
	return store.SaveTopicMastery(ctx, models.TopicMastery{
		UserID:        job.Target.UserID,
		TopicID:       job.Target.TopicID,
		PointsEarned:  points,
		MasteryStatus: status,
	})
}

// MasteryFor awards 100 points for a clean pass and 33 per passed difficulty
// otherwise.
func MasteryFor(result models.EvaluationResult) (int, models.MasteryStatus) {
	failed := result.FailedDifficultyCount()
	if result.Passed && failed == 0 {
		return fullMasteryPoints, models.MasteryMastered
	}
	if failed > totalDifficulties {
		failed = totalDifficulties
	}
	return (totalDifficulties - failed) * pointsPerDifficulty, models.MasteryInProgress
}

// ── Learning history ───────────────────────────────────────

// HistoryRecorder appends evaluation summaries to a user's learning history.
type HistoryRecorder interface {
	RecordEvaluation(ctx context.Context, userID int64, blockID string, summary models.EvaluationSummary) error
}

type LearningHistoryObserver struct {
	recorder HistoryRecorder
	now      func() time.Time
}

func NewLearningHistoryObserver(recorder HistoryRecorder) *LearningHistoryObserver {
	return &LearningHistoryObserver{recorder: recorder, now: time.Now}
}

func (o *LearningHistoryObserver) Name() string { return "learning_history" }

func (o *LearningHistoryObserver) Notify(ctx context.Context, _ Store, job *SideEffectJob) error {
	var failed []models.Difficulty
	if job.Result.PerformanceStats != nil {
		failed = job.Result.PerformanceStats.FailedDifficulties
	}
	return o.recorder.RecordEvaluation(ctx, job.Target.UserID, job.Target.BlockID, models.EvaluationSummary{
		Mode:               job.Target.Mode,
		NextMode:           job.Result.NextMode.ModeName,
		Passed:             job.Result.Passed,
		FailedDifficulties: failed,
		EvaluatedAt:        o.now().UTC(),
	})
}
