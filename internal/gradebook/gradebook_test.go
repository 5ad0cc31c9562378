package gradebook

import (
	"context"
	"errors"
	"testing"

	"github.com/edu-vault/backend/internal/models"
	"github.com/edu-vault/backend/internal/rules"
)

type fakeSource struct {
	report *models.PerformanceReport
	err    error
	calls  int
}

func (f *fakeSource) Evaluate(ctx context.Context, mode models.LearningMode) (*models.PerformanceReport, error) {
	f.calls++
	return f.report, f.err
}

func report(failed ...models.Difficulty) *models.PerformanceReport {
	stats := &models.PerformanceStats{DifficultyStatus: map[models.Difficulty]models.CompletionStatus{}}
	isFailed := map[models.Difficulty]bool{}
	for _, d := range failed {
		isFailed[d] = true
	}
	correct := map[models.Difficulty]int{}
	for _, d := range models.Difficulties {
		stats.RankedDifficulties = append(stats.RankedDifficulties, models.RankedDifficulty{Difficulty: d, AverageAttempts: 1})
		if isFailed[d] {
			stats.DifficultyStatus[d] = models.StatusIncomplete
			stats.FailedDifficulties = append(stats.FailedDifficulties, d)
		} else {
			stats.DifficultyStatus[d] = models.StatusCompleted
			correct[d] = 3
		}
	}
	return &models.PerformanceReport{
		Stats:          stats,
		CorrectCounts:  correct,
		Recommendation: &models.Recommendation{Model: "mock"},
	}
}

func TestEvaluateMasteredShortCircuits(t *testing.T) {
	src := &fakeSource{err: errors.New("must not be called")}
	gb := New(rules.NewRegistry(), src)

	result, err := gb.Evaluate(context.Background(), models.ModeMastered)
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if src.calls != 0 {
		t.Errorf("performance source called %d times, want 0", src.calls)
	}
	if !result.Passed || result.NextMode.ModeName != models.ModeMastered {
		t.Errorf("result = %+v, want passed into mastered", result)
	}
	if result.PerformanceStats != nil {
		t.Errorf("PerformanceStats = %+v, want nil", result.PerformanceStats)
	}
	if result.Guidance != "You've mastered all difficulty levels! Practice with unlimited questions at any time." {
		t.Errorf("Guidance = %q", result.Guidance)
	}
}

func TestEvaluateFailedReinforcementGoesToRecovery(t *testing.T) {
	src := &fakeSource{report: report(models.DifficultyHard)}
	gb := New(rules.NewRegistry(), src)

	result, err := gb.Evaluate(context.Background(), models.ModeReinforcement)
	if err != nil {
		t.Fatal(err)
	}
	if result.Passed {
		t.Error("Passed = true, want false")
	}
	if result.NextMode.ModeName != models.ModeRecovery {
		t.Errorf("next mode = %s, want recovery", result.NextMode.ModeName)
	}
	if result.Status != StatusSuccess {
		t.Errorf("Status = %q, want success", result.Status)
	}
	if result.Guidance != "To advance, correctly answer at least 4 out of 5 questions." {
		t.Errorf("Guidance = %q", result.Guidance)
	}
	if result.ModeGuidance != "Take time to review the fundamental concepts." {
		t.Errorf("ModeGuidance = %q", result.ModeGuidance)
	}
	if result.AIRecommendation == nil || result.AIRecommendation.Model != "mock" {
		t.Errorf("AIRecommendation = %+v, want passthrough", result.AIRecommendation)
	}
	if result.PreviousMode == nil || result.PreviousMode.ModeName != models.ModeReinforcement {
		t.Errorf("PreviousMode = %+v, want reinforcement", result.PreviousMode)
	}
}

func TestEvaluatePassedGoesToMastered(t *testing.T) {
	for _, mode := range []models.LearningMode{models.ModeNormal, models.ModeRecovery, models.ModeReset} {
		gb := New(rules.NewRegistry(), &fakeSource{report: report()})
		result, err := gb.Evaluate(context.Background(), mode)
		if err != nil {
			t.Fatal(err)
		}
		if !result.Passed || result.NextMode.ModeName != models.ModeMastered {
			t.Errorf("%s: passed=%v next=%s, want passed into mastered", mode, result.Passed, result.NextMode.ModeName)
		}
	}
}

func TestEvaluatePropagatesSourceError(t *testing.T) {
	boom := errors.New("mongo down")
	gb := New(rules.NewRegistry(), &fakeSource{err: boom})
	if _, err := gb.Evaluate(context.Background(), models.ModeNormal); !errors.Is(err, boom) {
		t.Errorf("Evaluate error = %v, want %v", err, boom)
	}
}

func TestEvaluateUnknownMode(t *testing.T) {
	gb := New(rules.NewRegistry(), &fakeSource{report: report()})
	if _, err := gb.Evaluate(context.Background(), "turbo"); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Evaluate error = %v, want ErrValidation", err)
	}
}

func TestMasteryFor(t *testing.T) {
	tests := []struct {
		name       string
		passed     bool
		failed     []models.Difficulty
		wantPoints int
		wantStatus models.MasteryStatus
	}{
		{"clean pass", true, nil, 100, models.MasteryMastered},
		{"one failed", false, []models.Difficulty{models.DifficultyHard}, 66, models.MasteryInProgress},
		{"two failed", false, []models.Difficulty{models.DifficultyMedium, models.DifficultyHard}, 33, models.MasteryInProgress},
		{"all failed", false, models.Difficulties, 0, models.MasteryInProgress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := models.EvaluationResult{
				Passed:           tt.passed,
				PerformanceStats: &models.PerformanceStats{FailedDifficulties: tt.failed},
			}
			points, status := MasteryFor(result)
			if points != tt.wantPoints || status != tt.wantStatus {
				t.Errorf("MasteryFor = (%d, %s), want (%d, %s)", points, status, tt.wantPoints, tt.wantStatus)
			}
		})
	}
}
