package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const InitialVersion = "v1.0.0"

// QuestionMetadata is the per-question attempt state kept inside a
// versioned attempt record.
type QuestionMetadata struct {
	QuestionID    string     `json:"question_id"`
	IsCorrect     bool       `json:"is_correct"`
	AttemptNumber int        `json:"attempt_number"`
	Difficulty    Difficulty `json:"difficulty"`
	Topic         string     `json:"topic"`
	TimeSpent     int        `json:"time_spent,omitempty"`
}

type AttemptDescription struct {
	Status       string       `json:"status"`
	LearningMode LearningMode `json:"learning_mode"`
	Guidance     string       `json:"guidance"`
	ModeGuidance string       `json:"mode_guidance"`
}

// UserQuestionAttempts holds every version of a user's attempts on one topic.
// Each grading pass closes the current version and opens the next one.
type UserQuestionAttempts struct {
	ID                  int64                                  `json:"id"`
	UserID              int64                                  `json:"user_id"`
	TopicID             int64                                  `json:"topic_id"`
	BlockID             string                                 `json:"block_id"`
	CurrentVersion      string                                 `json:"current_version"`
	CurrentLearningMode LearningMode                           `json:"current_learning_mode"`
	QuestionMetadata    map[string]map[string]QuestionMetadata `json:"question_metadata"`
	Descriptions        map[string]AttemptDescription          `json:"question_metadata_description"`
	CreatedAt           time.Time                              `json:"created_at"`
	UpdatedAt           time.Time                              `json:"updated_at"`
}

// CurrentMetadata returns the question map for the current version, creating
// it when missing.
func (u *UserQuestionAttempts) CurrentMetadata() map[string]QuestionMetadata {
	if u.QuestionMetadata == nil {
		u.QuestionMetadata = make(map[string]map[string]QuestionMetadata)
	}
	m, ok := u.QuestionMetadata[u.CurrentVersion]
	if !ok || m == nil {
		m = make(map[string]QuestionMetadata)
		u.QuestionMetadata[u.CurrentVersion] = m
	}
	return m
}

// NextVersion returns the version that follows the current one.
func (u *UserQuestionAttempts) NextVersion() (string, error) {
	return NextVersion(u.CurrentVersion)
}

// NextVersion bumps the major component of a "vMAJOR.MINOR.PATCH" key and
// resets the rest.
func NextVersion(version string) (string, error) {
	major, err := ParseMajorVersion(version)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("v%d.0.0", major+1), nil
}

func ParseMajorVersion(version string) (int, error) {
	v := strings.TrimPrefix(strings.TrimSpace(version), "v")
	parts := strings.Split(v, ".")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrVersionParsing, version)
	}
	for _, p := range parts[1:] {
		if _, err := strconv.Atoi(p); err != nil {
			return 0, fmt.Errorf("%w: %q", ErrVersionParsing, version)
		}
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil || major < 1 {
		return 0, fmt.Errorf("%w: %q", ErrVersionParsing, version)
	}
	return major, nil
}

type UserQuestionSet struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	TopicID         int64     `json:"topic_id"`
	QuestionListIDs []string  `json:"question_list_ids"`
	GradingMode     bool      `json:"grading_mode"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type MasteryStatus string

const (
	MasteryNotStarted MasteryStatus = "not_started"
	MasteryInProgress MasteryStatus = "in_progress"
	MasteryMastered   MasteryStatus = "mastered"
)

type TopicMastery struct {
	UserID        int64         `json:"user_id"`
	TopicID       int64         `json:"topic_id"`
	PointsEarned  int           `json:"points_earned"`
	MasteryStatus MasteryStatus `json:"mastery_status"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// ── API types ──────────────────────────────────────────────

type SubmitAttemptRequest struct {
	ChoiceIndex int `json:"choice_index"`
	TimeSpent   int `json:"time_spent"`
}

type SubmitAttemptResponse struct {
	QuestionID        string `json:"question_id"`
	IsCorrect         bool   `json:"is_correct"`
	AttemptNumber     int    `json:"attempt_number"`
	AttemptsRemaining int    `json:"attempts_remaining"`
	Explanation       string `json:"explanation,omitempty"`
}

type GradeAssessmentRequest struct {
	BlockID string `json:"block_id"`
}

// DefaultQuestionSetRequest replaces the question list new users of a topic start from.
type DefaultQuestionSetRequest struct {
	QuestionIDs []string `json:"question_ids"`
}

type ProgressResponse struct {
	TopicID             int64                       `json:"topic_id"`
	CurrentLearningMode LearningMode                `json:"current_learning_mode"`
	CurrentVersion      string                      `json:"current_version"`
	Questions           map[string]QuestionMetadata `json:"questions"`
	Description         *AttemptDescription         `json:"description,omitempty"`
	Mastery             *TopicMastery               `json:"mastery,omitempty"`
	GradingMode         bool                        `json:"grading_mode"`
}
