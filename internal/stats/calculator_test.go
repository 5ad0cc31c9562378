package stats

import (
	"math"
	"testing"

	"github.com/edu-vault/backend/internal/models"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}

func q(id string, d models.Difficulty, success bool, attempt, timeSpent int, tags ...string) models.QuestionAttemptContext {
	return models.QuestionAttemptContext{
		ID:         id,
		Difficulty: d,
		Tags:       tags,
		Attempt:    models.Attempt{Success: success, AttemptNumber: attempt, TimeSpent: timeSpent},
	}
}

func assertZero(t *testing.T, s models.DifficultyStats) {
	t.Helper()
	rates := []float64{
		s.SuccessRate, s.FirstAttemptSuccessRate, s.SecondAttemptSuccessRate, s.ThirdAttemptSuccessRate,
		s.AverageTime, s.AverageFirstAttemptTime, s.AverageSecondAttemptTime, s.AverageThirdAttemptTime,
		s.TimeDistribution.FirstAttempt, s.TimeDistribution.SecondAttempt, s.TimeDistribution.ThirdAttempt,
		s.CompletionRate, s.IncompleteRate, s.EarlyAbandonmentRate, s.AverageAttemptsToSuccess,
	}
	for i, r := range rates {
		if r != 0 {
			t.Errorf("rate %d = %v, want 0", i, r)
		}
	}
	if s.TotalAttempts != 0 {
		t.Errorf("TotalAttempts = %d, want 0", s.TotalAttempts)
	}
	if s.FailedTags == nil || len(s.FailedTags) != 0 {
		t.Errorf("FailedTags = %v, want empty non-nil slice", s.FailedTags)
	}
}

func TestCalculateEmptyDifficulty(t *testing.T) {
	c := NewCalculator(3)
	questions := []models.QuestionAttemptContext{
		q("1", models.DifficultyHard, false, 2, 40, "algebra"),
	}
	assertZero(t, c.Calculate(questions, models.DifficultyEasy))
	assertZero(t, c.Calculate(nil, models.DifficultyEasy))
}

func TestCalculateZeroAttempts(t *testing.T) {
	c := NewCalculator(3)
	questions := []models.QuestionAttemptContext{
		q("1", models.DifficultyEasy, false, 0, 0, "fractions"),
		q("2", models.DifficultyEasy, false, 0, 0, "decimals"),
	}
	assertZero(t, c.Calculate(questions, models.DifficultyEasy))
}

func TestCalculateScenario(t *testing.T) {
	c := NewCalculator(3)
	questions := []models.QuestionAttemptContext{
		q("1", models.DifficultyEasy, true, 1, 100, "a"),
		q("2", models.DifficultyEasy, true, 1, 200, "b"),
		q("3", models.DifficultyEasy, false, 3, 300, "c", "a"),
		q("4", models.DifficultyMedium, false, 1, 999, "ignored"),
	}

	got := c.Calculate(questions, models.DifficultyEasy)

	checks := []struct {
		name      string
		got, want float64
	}{
		{"SuccessRate", got.SuccessRate, 66.7},
		{"CompletionRate", got.CompletionRate, 66.7},
		{"IncompleteRate", got.IncompleteRate, 33.3},
		{"EarlyAbandonmentRate", got.EarlyAbandonmentRate, 0.0},
		{"AverageFirstAttemptTime", got.AverageFirstAttemptTime, 200.0},
		{"AverageTime", got.AverageTime, 200.0},
		{"AverageSecondAttemptTime", got.AverageSecondAttemptTime, 300.0},
		{"AverageThirdAttemptTime", got.AverageThirdAttemptTime, 300.0},
		{"FirstAttemptSuccessRate", got.FirstAttemptSuccessRate, 66.7},
		{"ThirdAttemptSuccessRate", got.ThirdAttemptSuccessRate, 0.0},
		{"AverageAttemptsToSuccess", got.AverageAttemptsToSuccess, 1.0},
	}
	for _, ck := range checks {
		if !almostEqual(ck.got, ck.want) {
			t.Errorf("%s = %v, want %v", ck.name, ck.got, ck.want)
		}
	}
	if got.TotalAttempts != 5 {
		t.Errorf("TotalAttempts = %d, want 5", got.TotalAttempts)
	}
	if len(got.FailedTags) != 2 || got.FailedTags[0] != "c" || got.FailedTags[1] != "a" {
		t.Errorf("FailedTags = %v, want [c a]", got.FailedTags)
	}
}

func TestCompletionPartitionsQuestionSet(t *testing.T) {
	sets := [][]models.QuestionAttemptContext{
		{
			q("1", models.DifficultyHard, true, 2, 10),
			q("2", models.DifficultyHard, false, 1, 10),
			q("3", models.DifficultyHard, false, 3, 10),
		},
		{
			q("1", models.DifficultyHard, true, 1, 10),
			q("2", models.DifficultyHard, true, 3, 10),
			q("3", models.DifficultyHard, false, 2, 10),
			q("4", models.DifficultyHard, false, 2, 10),
			q("5", models.DifficultyHard, false, 3, 10),
			q("6", models.DifficultyHard, true, 1, 10),
			q("7", models.DifficultyHard, false, 1, 10),
		},
	}
	for i, set := range sets {
		c := AnalyzeCompletion(set, 3)
		total := c.CompletionRate + c.IncompleteRate + c.EarlyAbandonmentRate
		if math.Abs(total-100) > 0.2 {
			t.Errorf("set %d: completion rates sum to %v, want 100", i, total)
		}
	}
}

func TestCompletionWithLowerAttemptLimit(t *testing.T) {
	set := []models.QuestionAttemptContext{
		q("1", models.DifficultyHard, true, 1, 10),
		q("2", models.DifficultyHard, false, 1, 10),
		q("3", models.DifficultyHard, false, 2, 10),
		q("4", models.DifficultyHard, false, 3, 10),
	}
	tests := []struct {
		name        string
		maxAttempts int
		wantCap     float64
		wantEarly   float64
	}{
		{"limit 2 counts past-limit failures at the cap", 2, 50, 25},
		{"limit 3", 3, 25, 50},
		{"limit 5 treats every failure as early", 5, 0, 75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := AnalyzeCompletion(set, tt.maxAttempts)
			if c.CompletionRate != 25 {
				t.Errorf("CompletionRate = %v, want 25", c.CompletionRate)
			}
			if c.IncompleteRate != tt.wantCap {
				t.Errorf("IncompleteRate = %v, want %v", c.IncompleteRate, tt.wantCap)
			}
			if c.EarlyAbandonmentRate != tt.wantEarly {
				t.Errorf("EarlyAbandonmentRate = %v, want %v", c.EarlyAbandonmentRate, tt.wantEarly)
			}
			total := c.CompletionRate + c.IncompleteRate + c.EarlyAbandonmentRate
			if math.Abs(total-100) > 0.2 {
				t.Errorf("rates sum to %v, want 100", total)
			}
		})
	}
}

func TestAttemptRatesEmpty(t *testing.T) {
	got := AttemptRates(nil)
	if got != (models.AttemptRates{}) {
		t.Errorf("AttemptRates(nil) = %+v, want zero", got)
	}
}

func TestAttemptRatesRoundedIndependently(t *testing.T) {
	questions := []models.QuestionAttemptContext{
		q("1", models.DifficultyMedium, true, 1, 0),
		q("2", models.DifficultyMedium, true, 2, 0),
		q("3", models.DifficultyMedium, true, 3, 0),
	}
	got := AttemptRates(questions)
	want := models.AttemptRates{First: 33.3, Second: 33.3, Third: 33.3}
	if got != want {
		t.Errorf("AttemptRates = %+v, want %+v", got, want)
	}
	if rate := SuccessRate(questions); rate != 100 {
		t.Errorf("SuccessRate = %v, want 100", rate)
	}
}

func TestAnalyzeTimeBuckets(t *testing.T) {
	questions := []models.QuestionAttemptContext{
		q("1", models.DifficultyEasy, true, 1, 10),
		q("2", models.DifficultyEasy, true, 2, 20),
		q("3", models.DifficultyEasy, false, 3, 30),
	}
	got := AnalyzeTime(questions)

	if !almostEqual(got.AverageFirstAttemptTime, 20) {
		t.Errorf("AverageFirstAttemptTime = %v, want 20", got.AverageFirstAttemptTime)
	}
	if !almostEqual(got.AverageSecondAttemptTime, 25) {
		t.Errorf("AverageSecondAttemptTime = %v, want 25", got.AverageSecondAttemptTime)
	}
	if !almostEqual(got.AverageThirdAttemptTime, 30) {
		t.Errorf("AverageThirdAttemptTime = %v, want 30", got.AverageThirdAttemptTime)
	}

	// buckets total 60 + 50 + 30
	if !almostEqual(got.Distribution.FirstAttempt, 60.0/140) {
		t.Errorf("Distribution.FirstAttempt = %v, want %v", got.Distribution.FirstAttempt, 60.0/140)
	}
	if !almostEqual(got.Distribution.ThirdAttempt, 30.0/140) {
		t.Errorf("Distribution.ThirdAttempt = %v, want %v", got.Distribution.ThirdAttempt, 30.0/140)
	}
}

func TestAnalyzeTimeThirdBucketIgnoresAttemptLimit(t *testing.T) {
	c := NewCalculator(5)
	got := c.Calculate([]models.QuestionAttemptContext{
		q("1", models.DifficultyEasy, true, 1, 10),
		q("2", models.DifficultyEasy, true, 3, 30),
	}, models.DifficultyEasy)
	if !almostEqual(got.AverageThirdAttemptTime, 30) {
		t.Errorf("AverageThirdAttemptTime = %v, want 30", got.AverageThirdAttemptTime)
	}
	if got.TimeDistribution.ThirdAttempt == 0 {
		t.Error("third attempt share is zero with a three-attempt question present")
	}
}

func TestAnalyzeTimeZeroTotal(t *testing.T) {
	questions := []models.QuestionAttemptContext{
		q("1", models.DifficultyEasy, true, 1, 0),
	}
	got := AnalyzeTime(questions)
	if got.Distribution != (models.TimeDistribution{}) {
		t.Errorf("Distribution = %+v, want zero", got.Distribution)
	}
}

func TestFailedTagsDeduplicated(t *testing.T) {
	questions := []models.QuestionAttemptContext{
		q("1", models.DifficultyEasy, false, 1, 0, "x", "y"),
		q("2", models.DifficultyEasy, false, 2, 0, "y", "z"),
		q("3", models.DifficultyEasy, true, 1, 0, "w"),
	}
	got := FailedTags(questions)
	want := map[string]bool{"x": true, "y": true, "z": true}
	if len(got) != len(want) {
		t.Fatalf("FailedTags = %v, want 3 distinct tags", got)
	}
	for _, tag := range got {
		if !want[tag] {
			t.Errorf("unexpected tag %q", tag)
		}
	}
}

func TestCalculateAllCoversEveryDifficulty(t *testing.T) {
	c := NewCalculator(0)
	got := c.CalculateAll([]models.QuestionAttemptContext{
		q("1", models.DifficultyMedium, true, 1, 50),
	})
	if len(got) != 3 {
		t.Fatalf("CalculateAll returned %d difficulties, want 3", len(got))
	}
	if got[models.DifficultyMedium].SuccessRate != 100 {
		t.Errorf("medium SuccessRate = %v, want 100", got[models.DifficultyMedium].SuccessRate)
	}
	if got[models.DifficultyHard].TotalAttempts != 0 {
		t.Errorf("hard TotalAttempts = %d, want 0", got[models.DifficultyHard].TotalAttempts)
	}
}
