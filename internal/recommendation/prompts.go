package recommendation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/edu-vault/backend/internal/models"
	"github.com/edu-vault/backend/internal/rules"
)

// CourseContext describes where the question set sits in the course.
type CourseContext struct {
	CourseName    string `json:"course_name"`
	Category      string `json:"category"`
	TopicName     string `json:"topic_name"`
	Syllabus      string `json:"syllabus"`
	AcademicLevel string `json:"academic_level"`
}

type Request struct {
	Rule               *rules.Rule
	History            *models.LearningHistory
	FailedDifficulties []models.Difficulty
	FailedTags         []string
	PreviousAttemptIDs []string
	QuestionBank       []models.Question
	Course             CourseContext
}

func SystemPrompt() string {
	return `You are an intelligent learning assistant tasked with recommending questions and creating learning paths for students.
Your recommendations should be based on their current learning mode, performance history, and specific requirements.
Respond with JSON only.`
}

func BuildUserPrompt(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Context:\n")
	fmt.Fprintf(&b, "Current Course: %s\n", req.Course.CourseName)
	fmt.Fprintf(&b, "Category: %s\n", req.Course.Category)
	fmt.Fprintf(&b, "Current Mode: %s\n", req.Rule.Mode)
	fmt.Fprintf(&b, "Mode Description: %s\n", req.Rule.Description)
	fmt.Fprintf(&b, "Syllabus: %s\n", req.Course.Syllabus)
	fmt.Fprintf(&b, "Current Topic: %s\n", req.Course.TopicName)
	fmt.Fprintf(&b, "Academic Level: %s\n", req.Course.AcademicLevel)
	fmt.Fprintf(&b, "User Learning History: %s\n\n", historySummary(req.History))

	fmt.Fprintf(&b, "Failed Difficulty Levels: %s\n", joinDifficulties(req.FailedDifficulties))
	fmt.Fprintf(&b, "Failed Tags: %s\n", strings.Join(req.FailedTags, ", "))
	fmt.Fprintf(&b, "Previous Attempt IDs: %s\n\n", strings.Join(req.PreviousAttemptIDs, ", "))

	fmt.Fprintf(&b, "Task:\n%s\n\n", req.Rule.Task)

	b.WriteString(`Requirements:
- Exclude questions from Previous Attempt IDs
- Build conceptual progression
- Address specific areas of weakness
- If no applicable questions exist in the question bank, generate new questions from the relevant context.

Return a JSON array of questions in this format:
[
  {
    "text": "question_text",
    "difficulty": "easy|medium|hard",
    "tags": ["tag1", "tag2"],
    "choices": [{"text": "option_text", "is_correct": true}],
    "solution": {"explanation": "explanation", "steps": ["step1", "step2"]},
    "hint": "hint_text",
    "metadata": {"created_by": "model", "time_estimate": {"minutes": "3"}}
  }
]
`)

	if len(req.QuestionBank) > 0 {
		bank, _ := json.Marshal(req.QuestionBank)
		fmt.Fprintf(&b, "\nQuestion Bank:\n%s\n", bank)
	}
	return b.String()
}

func historySummary(h *models.LearningHistory) string {
	if h == nil {
		return "none"
	}
	var parts []string
	for _, mode := range []models.LearningMode{
		models.ModeNormal, models.ModeReinforcement, models.ModeRecovery, models.ModeReset,
	} {
		sets := h.ModeHistory[mode]
		if len(sets) == 0 {
			continue
		}
		last := sets[len(sets)-1]
		var rates []string
		for _, d := range models.Difficulties {
			if s, ok := last.DifficultyStats[d]; ok {
				rates = append(rates, fmt.Sprintf("%s %.1f%%", d, s.SuccessRate))
			}
		}
		parts = append(parts, fmt.Sprintf("%s: %d set(s), last success %s", mode, len(sets), strings.Join(rates, ", ")))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "; ")
}

func joinDifficulties(ds []models.Difficulty) string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = string(d)
	}
	return strings.Join(out, ", ")
}
