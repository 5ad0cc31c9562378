package rules

import (
	"errors"
	"testing"

	"github.com/edu-vault/backend/internal/models"
)

func TestRegistryGet(t *testing.T) {
	tests := []struct {
		mode         models.LearningMode
		perDiff      int
		required     int
		pass         string
		attempts     int
		prerequisite models.LearningMode
	}{
		{models.ModeNormal, 3, 2, "2/3", 1, ""},
		{models.ModeReinforcement, 3, 3, "1/1", 1, models.ModeNormal},
		{models.ModeRecovery, 5, 4, "4/5", 2, models.ModeReinforcement},
		{models.ModeReset, 3, 3, "1/1", Unbounded, models.ModeRecovery},
		{models.ModeMastered, Unbounded, 0, "0/1", Unbounded, ""},
	}

	reg := NewRegistry()
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			rule, err := reg.Get(tt.mode)
			if err != nil {
				t.Fatalf("Get(%s) error: %v", tt.mode, err)
			}
			if rule.Mode != tt.mode {
				t.Errorf("Mode = %s, want %s", rule.Mode, tt.mode)
			}
			if rule.QuestionsPerDifficulty != tt.perDiff {
				t.Errorf("QuestionsPerDifficulty = %d, want %d", rule.QuestionsPerDifficulty, tt.perDiff)
			}
			if rule.RequiredCorrectQuestions != tt.required {
				t.Errorf("RequiredCorrectQuestions = %d, want %d", rule.RequiredCorrectQuestions, tt.required)
			}
			if got := rule.PassRequirement.String(); got != tt.pass {
				t.Errorf("PassRequirement = %s, want %s", got, tt.pass)
			}
			if rule.AttemptsAllowed != tt.attempts {
				t.Errorf("AttemptsAllowed = %d, want %d", rule.AttemptsAllowed, tt.attempts)
			}
			if rule.Prerequisite != tt.prerequisite {
				t.Errorf("Prerequisite = %q, want %q", rule.Prerequisite, tt.prerequisite)
			}
		})
	}
}

func TestRegistryReturnsSameInstance(t *testing.T) {
	reg := NewRegistry()
	a, err := reg.Get(models.ModeRecovery)
	if err != nil {
		t.Fatal(err)
	}
	b, err := reg.Get(models.ModeRecovery)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("Get returned distinct instances %p and %p", a, b)
	}
}

func TestRegistryUnknownMode(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Get(models.LearningMode("turbo"))
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("Get(turbo) error = %v, want ErrValidation", err)
	}
}

func TestPassRequirementMatchesRatio(t *testing.T) {
	reg := NewRegistry()
	for mode := range definitions {
		rule, _ := reg.Get(mode)
		if rule.QuestionsPerDifficulty <= 0 {
			continue
		}
		got := float64(rule.RequiredCorrectQuestions) / float64(rule.QuestionsPerDifficulty)
		if got != rule.PassRequirement.Float() {
			t.Errorf("%s: required/perDifficulty = %v, pass requirement = %v", mode, got, rule.PassRequirement.Float())
		}
	}
}

func TestPrerequisitesAreAcyclic(t *testing.T) {
	reg := NewRegistry()
	for mode := range definitions {
		seen := map[models.LearningMode]bool{}
		cur := mode
		for cur != "" {
			if seen[cur] {
				t.Fatalf("prerequisite cycle reached from %s", mode)
			}
			seen[cur] = true
			rule, err := reg.Get(cur)
			if err != nil {
				t.Fatal(err)
			}
			cur = rule.Prerequisite
		}
	}
}

func TestRequiredScoreAndTotal(t *testing.T) {
	reg := NewRegistry()
	tests := []struct {
		mode      models.LearningMode
		failed    int
		wantScore int
		wantTotal int
	}{
		{models.ModeNormal, 1, 2, 3},
		{models.ModeNormal, 3, 6, 9},
		{models.ModeRecovery, 2, 8, 10},
		{models.ModeReinforcement, 2, 6, 6},
		{models.ModeReset, 0, 0, 0},
		{models.ModeMastered, 3, 0, 0},
	}
	for _, tt := range tests {
		rule, _ := reg.Get(tt.mode)
		if got := rule.RequiredScore(tt.failed); got != tt.wantScore {
			t.Errorf("%s.RequiredScore(%d) = %d, want %d", tt.mode, tt.failed, got, tt.wantScore)
		}
		if got := rule.TotalQuestions(tt.failed); got != tt.wantTotal {
			t.Errorf("%s.TotalQuestions(%d) = %d, want %d", tt.mode, tt.failed, got, tt.wantTotal)
		}
	}
}

func TestFractionString(t *testing.T) {
	tests := []struct {
		f    Fraction
		want string
	}{
		{Fraction{2, 3}, "2/3"},
		{Fraction{4, 6}, "2/3"},
		{Fraction{3, 3}, "1/1"},
		{Fraction{0, 5}, "0/1"},
		{Fraction{1, 0}, "0/1"},
	}
	for _, tt := range tests {
		if got := tt.f.String(); got != tt.want {
			t.Errorf("Fraction%v.String() = %s, want %s", tt.f, got, tt.want)
		}
	}
}
