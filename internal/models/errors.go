package models

import "errors"

var (
	ErrValidation        = errors.New("validation error")
	ErrDatabaseQuery     = errors.New("database query error")
	ErrDatabaseUpdate    = errors.New("database update error")
	ErrOrchestration     = errors.New("orchestration error")
	ErrProcessingFailed  = errors.New("processing failed")
	ErrVersionParsing    = errors.New("version parsing error")
	ErrNotFound          = errors.New("not found")
	ErrAlreadyCorrect    = errors.New("question already answered correctly")
	ErrAttemptsExhausted = errors.New("maximum attempts reached")
	ErrGradingInProgress = errors.New("grading in progress")
)

type ErrorResponse struct {
	Error string `json:"error"`
}
