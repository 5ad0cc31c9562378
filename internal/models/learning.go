package models

import (
	"fmt"
	"strings"
)

type LearningMode string

const (
	ModeNormal        LearningMode = "normal"
	ModeReinforcement LearningMode = "reinforcement"
	ModeRecovery      LearningMode = "recovery"
	ModeReset         LearningMode = "reset"
	ModeMastered      LearningMode = "mastered"
)

// ParseLearningMode accepts the stored mode tag in any letter case.
func ParseLearningMode(s string) (LearningMode, error) {
	m := LearningMode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case ModeNormal, ModeReinforcement, ModeRecovery, ModeReset, ModeMastered:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown learning mode %q", ErrValidation, s)
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists the fixed difficulty levels in their canonical order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

type CompletionStatus string

const (
	StatusCompleted  CompletionStatus = "completed"
	StatusIncomplete CompletionStatus = "incomplete"
)

// ── Per-question attempt context ───────────────────────────

type Attempt struct {
	Success       bool `json:"success"`
	TimeSpent     int  `json:"timeSpent"`
	AttemptNumber int  `json:"attemptNumber"`
}

// QuestionAttemptContext is one user's attempt summary for one question,
// rebuilt on every evaluation pass.
type QuestionAttemptContext struct {
	ID         string     `json:"id" bson:"id"`
	Difficulty Difficulty `json:"difficulty" bson:"difficulty"`
	Tags       []string   `json:"tags" bson:"tags"`
	Attempt    Attempt    `json:"attempt" bson:"attempt"`
}

// ── Difficulty statistics ──────────────────────────────────

type AttemptRates struct {
	First  float64 `json:"first" bson:"first"`
	Second float64 `json:"second" bson:"second"`
	Third  float64 `json:"third" bson:"third"`
}

type TimeDistribution struct {
	FirstAttempt  float64 `json:"firstAttempt" bson:"firstAttempt"`
	SecondAttempt float64 `json:"secondAttempt" bson:"secondAttempt"`
	ThirdAttempt  float64 `json:"thirdAttempt" bson:"thirdAttempt"`
}

type DifficultyStats struct {
	TotalAttempts            int              `json:"totalAttempts" bson:"totalAttempts"`
	SuccessRate              float64          `json:"successRate" bson:"successRate"`
	FirstAttemptSuccessRate  float64          `json:"firstAttemptSuccessRate" bson:"firstAttemptSuccessRate"`
	SecondAttemptSuccessRate float64          `json:"secondAttemptSuccessRate" bson:"secondAttemptSuccessRate"`
	ThirdAttemptSuccessRate  float64          `json:"thirdAttemptSuccessRate" bson:"thirdAttemptSuccessRate"`
	AverageTime              float64          `json:"averageTime" bson:"averageTime"`
	AverageFirstAttemptTime  float64          `json:"averageFirstAttemptTime" bson:"averageFirstAttemptTime"`
	AverageSecondAttemptTime float64          `json:"averageSecondAttemptTime" bson:"averageSecondAttemptTime"`
	AverageThirdAttemptTime  float64          `json:"averageThirdAttemptTime" bson:"averageThirdAttemptTime"`
	TimeDistribution         TimeDistribution `json:"timeDistribution" bson:"timeDistribution"`
	CompletionRate           float64          `json:"completionRate" bson:"completionRate"`
	IncompleteRate           float64          `json:"incompleteRate" bson:"incompleteRate"`
	EarlyAbandonmentRate     float64          `json:"earlyAbandonmentRate" bson:"earlyAbandonmentRate"`
	FailedTags               []string         `json:"failedTags" bson:"failedTags"`
	AverageAttemptsToSuccess float64          `json:"averageAttemptsToSuccess" bson:"averageAttemptsToSuccess"`
}

// ── Performance statistics ─────────────────────────────────

type RankedDifficulty struct {
	Difficulty      Difficulty `json:"difficulty"`
	AverageAttempts float64    `json:"average_attempts"`
}

type PerformanceStats struct {
	RankedDifficulties []RankedDifficulty              `json:"ranked_difficulties"`
	DifficultyStatus   map[Difficulty]CompletionStatus `json:"difficulty_status"`
	FailedDifficulties []Difficulty                    `json:"failed_difficulties"`
}

// HasFailed reports whether any difficulty is still incomplete.
func (p PerformanceStats) HasFailed() bool {
	for _, s := range p.DifficultyStatus {
		if s == StatusIncomplete {
			return true
		}
	}
	return false
}

// ── Evaluation ─────────────────────────────────────────────

type NextMode struct {
	Guidance       string       `json:"guidance"`
	ModeGuidance   string       `json:"mode_guidance"`
	RequiredScore  int          `json:"required_score"`
	TotalQuestions int          `json:"total_questions"`
	ModeName       LearningMode `json:"mode_name"`
}

type DifficultyScore struct {
	Difficulty    Difficulty `json:"difficulty"`
	Status        string     `json:"status"`
	RequiredScore string     `json:"required_score"`
	UsersScore    string     `json:"users_score"`
}

type PreviousMode struct {
	Guidance           string            `json:"guidance"`
	ModeGuidance       string            `json:"mode_guidance"`
	RequiredScore      int               `json:"required_score"`
	TotalQuestions     int               `json:"total_questions"`
	ModeName           LearningMode      `json:"mode_name"`
	FailedDifficulties []DifficultyScore `json:"failed_difficulties"`
	PassedDifficulties []DifficultyScore `json:"passed_difficulties"`
}

type EvaluationResult struct {
	Status           string            `json:"status"`
	Passed           bool              `json:"passed"`
	NextMode         NextMode          `json:"next_mode"`
	PreviousMode     *PreviousMode     `json:"previous_mode,omitempty"`
	ModeGuidance     string            `json:"mode_guidance"`
	Guidance         string            `json:"guidance"`
	PerformanceStats *PerformanceStats `json:"performance_stats,omitempty"`
	AIRecommendation *Recommendation   `json:"ai_recommendation,omitempty"`
}

// FailedDifficultyCount is zero for results produced without performance stats.
func (r EvaluationResult) FailedDifficultyCount() int {
	if r.PerformanceStats == nil {
		return 0
	}
	return len(r.PerformanceStats.FailedDifficulties)
}

// RecommendedQuestionIDs lists the stored ids of the recommended questions,
// skipping any that were never saved.
func (r EvaluationResult) RecommendedQuestionIDs() []string {
	if r.AIRecommendation == nil {
		return nil
	}
	var ids []string
	for _, q := range r.AIRecommendation.Questions {
		if q.ID != "" {
			ids = append(ids, q.ID)
		}
	}
	return ids
}

// PerformanceReport is what grading of a question set produces before the
// state machine runs.
type PerformanceReport struct {
	Stats          *PerformanceStats
	CorrectCounts  map[Difficulty]int
	Recommendation *Recommendation
}
