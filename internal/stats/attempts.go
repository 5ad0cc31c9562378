package stats

import (
	"math"

	"github.com/edu-vault/backend/internal/models"
)

// TotalAttempts sums the attempt numbers of every question.
func TotalAttempts(questions []models.QuestionAttemptContext) int {
	total := 0
	for _, q := range questions {
		total += q.Attempt.AttemptNumber
	}
	return total
}

// SuccessRate is the share of questions answered correctly, as a percentage
// of the question count.
func SuccessRate(questions []models.QuestionAttemptContext) float64 {
	if len(questions) == 0 {
		return 0
	}
	successful := 0
	for _, q := range questions {
		if q.Attempt.Success {
			successful++
		}
	}
	return percent(successful, len(questions))
}

// AttemptRates returns the success rate at attempt 1, 2 and 3. Each rate is
// rounded on its own and they are not normalised against SuccessRate.
func AttemptRates(questions []models.QuestionAttemptContext) models.AttemptRates {
	if len(questions) == 0 {
		return models.AttemptRates{}
	}
	var byRank [4]int
	for _, q := range questions {
		n := q.Attempt.AttemptNumber
		if q.Attempt.Success && n >= 1 && n <= 3 {
			byRank[n]++
		}
	}
	total := len(questions)
	return models.AttemptRates{
		First:  percent(byRank[1], total),
		Second: percent(byRank[2], total),
		Third:  percent(byRank[3], total),
	}
}

// AverageAttemptsToSuccess is the mean attempt number over successful
// questions, or 0 when none succeeded.
func AverageAttemptsToSuccess(questions []models.QuestionAttemptContext) float64 {
	sum, n := 0, 0
	for _, q := range questions {
		if q.Attempt.Success {
			sum += q.Attempt.AttemptNumber
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round1(float64(part) / float64(total) * 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
