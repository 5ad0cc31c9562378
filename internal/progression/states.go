// Package progression is the learning-mode state machine: given the mode a
// user was graded in and how they did, it decides where they go next.
package progression

import (
	"fmt"

	"github.com/edu-vault/backend/internal/models"
)

const MasteredGuidance = "You've mastered all difficulty levels! Practice with unlimited questions at any time."

type state struct {
	next         models.LearningMode
	modeGuidance string
}

// states encodes the failure path normal → reinforcement → recovery → reset,
// with reset and mastered looping on themselves.
var states = map[models.LearningMode]state{
	models.ModeNormal: {
		next:         models.ModeReinforcement,
		modeGuidance: "Answer the required number of questions to level up and progress through the course.",
	},
	models.ModeReinforcement: {
		next:         models.ModeRecovery,
		modeGuidance: "Focus on completing questions in areas where you had difficulty.",
	},
	models.ModeRecovery: {
		next:         models.ModeReset,
		modeGuidance: "Take time to review the fundamental concepts.",
	},
	models.ModeReset: {
		next:         models.ModeReset,
		modeGuidance: "Start fresh with a comprehensive review.",
	},
	models.ModeMastered: {
		next:         models.ModeMastered,
		modeGuidance: "Continue practicing to maintain mastery.",
	},
}

func lookup(mode models.LearningMode) (state, error) {
	s, ok := states[mode]
	if !ok {
		return state{}, fmt.Errorf("%w: invalid mode name %q", models.ErrValidation, mode)
	}
	return s, nil
}

// NextOnFailure returns the mode that follows mode when a difficulty was failed.
func NextOnFailure(mode models.LearningMode) (models.LearningMode, error) {
	s, err := lookup(mode)
	if err != nil {
		return "", err
	}
	return s.next, nil
}

// ModeGuidance is the general message shown for a mode.
func ModeGuidance(mode models.LearningMode) string {
	return states[mode].modeGuidance
}
