package stats

import "github.com/edu-vault/backend/internal/models"

type TimeStats struct {
	AverageFirstAttemptTime  float64
	AverageSecondAttemptTime float64
	AverageThirdAttemptTime  float64
	Distribution             models.TimeDistribution
}

// thirdRank is the attempt number the third bucket collects, independent of
// the configured attempt limit.
const thirdRank = 3

// AnalyzeTime groups time spent by how far each question got. The buckets
// overlap: every question lands in the first, those with two or more
// attempts also land in the second, and only three-attempt questions land
// in the third. Distribution shares are taken over the sum of all buckets.
func AnalyzeTime(questions []models.QuestionAttemptContext) TimeStats {
	if len(questions) == 0 {
		return TimeStats{}
	}

	var first, second, third []int
	for _, q := range questions {
		n := q.Attempt.AttemptNumber
		if n >= 1 {
			first = append(first, q.Attempt.TimeSpent)
		}
		if n >= 2 {
			second = append(second, q.Attempt.TimeSpent)
		}
		if n == thirdRank {
			third = append(third, q.Attempt.TimeSpent)
		}
	}

	ts := TimeStats{
		AverageFirstAttemptTime:  mean(first),
		AverageSecondAttemptTime: mean(second),
		AverageThirdAttemptTime:  mean(third),
	}

	s1, s2, s3 := sum(first), sum(second), sum(third)
	total := s1 + s2 + s3
	if total > 0 {
		ts.Distribution = models.TimeDistribution{
			FirstAttempt:  float64(s1) / float64(total),
			SecondAttempt: float64(s2) / float64(total),
			ThirdAttempt:  float64(s3) / float64(total),
		}
	}
	return ts
}

func sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}

func mean(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	return float64(sum(values)) / float64(len(values))
}
