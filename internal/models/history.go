package models

import "time"

// ModeData is one completed question set within a learning mode.
type ModeData struct {
	Questions       []QuestionAttemptContext       `json:"questions" bson:"questions"`
	DifficultyStats map[Difficulty]DifficultyStats `json:"difficultyStats" bson:"difficultyStats"`
	RecordedAt      time.Time                      `json:"recordedAt" bson:"recordedAt"`
}

type EvaluationSummary struct {
	Mode               LearningMode `json:"mode" bson:"mode"`
	NextMode           LearningMode `json:"nextMode" bson:"nextMode"`
	Passed             bool         `json:"passed" bson:"passed"`
	FailedDifficulties []Difficulty `json:"failedDifficulties" bson:"failedDifficulties"`
	EvaluatedAt        time.Time    `json:"evaluatedAt" bson:"evaluatedAt"`
}

type LearningHistory struct {
	UserID      int64                       `json:"userId" bson:"userId"`
	BlockID     string                      `json:"blockId" bson:"blockId"`
	ModeHistory map[LearningMode][]ModeData `json:"modeHistory" bson:"modeHistory"`
	Evaluations []EvaluationSummary         `json:"evaluations" bson:"evaluations"`
	UpdatedAt   time.Time                   `json:"updatedAt" bson:"updatedAt"`
}

// HasMode reports whether any question set was recorded for mode.
func (h *LearningHistory) HasMode(mode LearningMode) bool {
	return len(h.ModeHistory[mode]) > 0
}

// FailedTags collects the distinct failed tags of every difficulty across
// all question sets recorded for mode.
func (h *LearningHistory) FailedTags(mode LearningMode) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, data := range h.ModeHistory[mode] {
		for _, d := range Difficulties {
			for _, tag := range data.DifficultyStats[d].FailedTags {
				if !seen[tag] {
					seen[tag] = true
					tags = append(tags, tag)
				}
			}
		}
	}
	return tags
}
