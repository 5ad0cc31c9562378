package rules

import (
	"fmt"
	"sync"

	"github.com/edu-vault/backend/internal/models"
)

// Unbounded marks a rule field without a limit.
const Unbounded = -1

// Fraction is a pass requirement kept as an exact ratio.
type Fraction struct {
	Num int
	Den int
}

func (f Fraction) Float() float64 {
	if f.Den == 0 {
		return 0
	}
	return float64(f.Num) / float64(f.Den)
}

// Reduced returns the fraction in lowest terms with a positive denominator.
func (f Fraction) Reduced() Fraction {
	if f.Den == 0 {
		return Fraction{Num: 0, Den: 1}
	}
	if f.Num == 0 {
		return Fraction{Num: 0, Den: 1}
	}
	g := gcd(abs(f.Num), abs(f.Den))
	n, d := f.Num/g, f.Den/g
	if d < 0 {
		n, d = -n, -d
	}
	return Fraction{Num: n, Den: d}
}

func (f Fraction) String() string {
	r := f.Reduced()
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Rule is the static policy of one learning mode.
type Rule struct {
	Mode                     models.LearningMode
	QuestionsPerDifficulty   int
	RequiredCorrectQuestions int
	PassRequirement          Fraction
	AttemptsAllowed          int
	Prerequisite             models.LearningMode
	Description              string
	Task                     string
}

func (r *Rule) HasPrerequisite() bool {
	return r.Prerequisite != ""
}

// RequiredScore is the number of correct answers needed across n failed
// difficulty levels.
func (r *Rule) RequiredScore(n int) int {
	if r.QuestionsPerDifficulty <= 0 || n <= 0 {
		return 0
	}
	return r.PassRequirement.Num * r.QuestionsPerDifficulty * n / r.PassRequirement.Den
}

// TotalQuestions is the size of a question set covering n failed difficulty levels.
func (r *Rule) TotalQuestions(n int) int {
	if r.QuestionsPerDifficulty <= 0 || n <= 0 {
		return 0
	}
	return r.QuestionsPerDifficulty * n
}

var definitions = map[models.LearningMode]Rule{
	models.ModeNormal: {
		QuestionsPerDifficulty:   3,
		RequiredCorrectQuestions: 2,
		PassRequirement:          Fraction{Num: 2, Den: 3},
		AttemptsAllowed:          1,
		Description:              "Standard progression through the topic.",
		Task:                     "Select 3 questions for each failed difficulty level where 60% focus on failed tags and 40% introduce new but related tags.",
	},
	models.ModeReinforcement: {
		QuestionsPerDifficulty:   3,
		RequiredCorrectQuestions: 3,
		PassRequirement:          Fraction{Num: 3, Den: 3},
		AttemptsAllowed:          1,
		Prerequisite:             models.ModeNormal,
		Description:              "Strengthen the areas missed in normal mode.",
		Task:                     "Select 3 questions for each failed difficulty level where 60% focus on failed tags and 40% introduce new but related tags.",
	},
	models.ModeRecovery: {
		QuestionsPerDifficulty:   5,
		RequiredCorrectQuestions: 4,
		PassRequirement:          Fraction{Num: 4, Den: 5},
		AttemptsAllowed:          2,
		Prerequisite:             models.ModeReinforcement,
		Description:              "Rebuild the fundamental concepts behind repeated mistakes.",
		Task:                     "Select 5 questions for each failed difficulty level where 60% focus on failed tags and 40% introduce new but related tags.",
	},
	models.ModeReset: {
		QuestionsPerDifficulty:   3,
		RequiredCorrectQuestions: 3,
		PassRequirement:          Fraction{Num: 3, Den: 3},
		AttemptsAllowed:          Unbounded,
		Prerequisite:             models.ModeRecovery,
		Description:              "Start the topic again with a comprehensive review.",
		Task:                     "Select 3 foundational questions for each failed difficulty level covering every failed tag.",
	},
	models.ModeMastered: {
		QuestionsPerDifficulty:   Unbounded,
		RequiredCorrectQuestions: 0,
		PassRequirement:          Fraction{Num: 0, Den: 1},
		AttemptsAllowed:          Unbounded,
		Description:              "All difficulty levels passed. Unlimited practice.",
	},
}

// Registry hands out one shared *Rule per mode. It is built once at startup
// and passed to the components that need policy lookups.
type Registry struct {
	mu    sync.Mutex
	rules map[models.LearningMode]*Rule
}

func NewRegistry() *Registry {
	return &Registry{rules: make(map[models.LearningMode]*Rule)}
}

// Get returns the rule for mode. Repeated calls return the same pointer.
func (r *Registry) Get(mode models.LearningMode) (*Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rule, ok := r.rules[mode]; ok {
		return rule, nil
	}
	def, ok := definitions[mode]
	if !ok {
		return nil, fmt.Errorf("%w: no learning rule for mode %q", models.ErrValidation, mode)
	}
	rule := def
	rule.Mode = mode
	r.rules[mode] = &rule
	return &rule, nil
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
