package recommendation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/edu-vault/backend/internal/models"
)

type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("recommendation validation failed: %s", strings.Join(e.Errors, "; "))
}

func (e *ValidationError) Unwrap() error {
	return models.ErrValidation
}

// ParseResponse decodes the model output into questions. Both a bare array
// and {"generated_questions": [...]} are accepted, with or without a
// markdown code fence around them.
func ParseResponse(responseBody string) ([]models.Question, error) {
	body := []byte(unfence(responseBody))

	var questions []models.Question
	var err error
	if len(body) > 0 && body[0] == '[' {
		err = json.Unmarshal(body, &questions)
	} else {
		var envelope struct {
			GeneratedQuestions []models.Question `json:"generated_questions"`
		}
		err = json.Unmarshal(body, &envelope)
		questions = envelope.GeneratedQuestions
	}
	if err != nil {
		return nil, fmt.Errorf("%w: recommendation is not valid JSON: %v", models.ErrValidation, err)
	}

	if err := Validate(questions); err != nil {
		return nil, err
	}
	return questions, nil
}

func unfence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	// Drop the opening fence line, including any language tag.
	if _, rest, ok := strings.Cut(s, "\n"); ok {
		s = rest
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// Validate checks the structure of every recommended question and reports
// all problems at once.
func Validate(questions []models.Question) error {
	if len(questions) == 0 {
		return &ValidationError{Errors: []string{"no questions in response"}}
	}

	var errs []string
	for i, q := range questions {
		n := i + 1
		if strings.TrimSpace(q.Text) == "" {
			errs = append(errs, fmt.Sprintf("question %d: empty text", n))
		}
		if !q.Difficulty.Valid() {
			errs = append(errs, fmt.Sprintf("question %d: invalid difficulty %q", n, q.Difficulty))
		}
		if len(q.Choices) < 2 {
			errs = append(errs, fmt.Sprintf("question %d: expected at least 2 choices, got %d", n, len(q.Choices)))
			continue
		}
		correct := 0
		for _, c := range q.Choices {
			if c.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			errs = append(errs, fmt.Sprintf("question %d: expected exactly 1 correct choice, got %d", n, correct))
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}
