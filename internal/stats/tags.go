package stats

import "github.com/edu-vault/backend/internal/models"

// FailedTags returns the distinct tags of unanswered questions in first-seen order.
func FailedTags(questions []models.QuestionAttemptContext) []string {
	seen := make(map[string]bool)
	tags := []string{}
	for _, q := range questions {
		if q.Attempt.Success {
			continue
		}
		for _, tag := range q.Tags {
			if !seen[tag] {
				seen[tag] = true
				tags = append(tags, tag)
			}
		}
	}
	return tags
}
