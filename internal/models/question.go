package models

type Choice struct {
	Text      string `json:"text" bson:"text"`
	IsCorrect bool   `json:"is_correct" bson:"is_correct"`
}

type Solution struct {
	Explanation string   `json:"explanation" bson:"explanation"`
	Steps       []string `json:"steps" bson:"steps"`
}

type TimeEstimate struct {
	Minutes string `json:"minutes" bson:"minutes"`
}

type QuestionInfo struct {
	CreatedBy    string       `json:"created_by" bson:"created_by"`
	TimeEstimate TimeEstimate `json:"time_estimate" bson:"time_estimate"`
}

// Question is a question document as stored in the course's question collection.
type Question struct {
	ID         string       `json:"id"`
	Text       string       `json:"text"`
	Difficulty Difficulty   `json:"difficulty"`
	Tags       []string     `json:"tags"`
	Choices    []Choice     `json:"choices"`
	Solution   Solution     `json:"solution"`
	Hint       string       `json:"hint"`
	Topic      string       `json:"topic"`
	BlockID    string       `json:"block_id"`
	Metadata   QuestionInfo `json:"metadata"`
}

// CorrectChoice returns the index of the first correct choice, or -1.
func (q Question) CorrectChoice() int {
	for i, c := range q.Choices {
		if c.IsCorrect {
			return i
		}
	}
	return -1
}

// IsCorrectChoice reports whether idx points at a correct choice.
func (q Question) IsCorrectChoice(idx int) bool {
	if idx < 0 || idx >= len(q.Choices) {
		return false
	}
	return q.Choices[idx].IsCorrect
}

// Recommendation is what the recommendation collaborator returns; the
// gradebook passes it through untouched.
type Recommendation struct {
	Questions    []Question `json:"questions"`
	Model        string     `json:"model"`
	PromptTokens int        `json:"prompt_tokens"`
	OutputTokens int        `json:"output_tokens"`
}
