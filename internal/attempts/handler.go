package attempts

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/edu-vault/backend/internal/models"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// getUserID extracts the authenticated user ID from the request context.
func getUserID(r *http.Request) (int64, bool) {
	uid, ok := r.Context().Value("user_id").(int64)
	return uid, ok
}

func topicID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["topicID"], 10, 64)
	return id, err == nil && id > 0
}

// requestIDs resolves the user and topic or writes the error response.
func requestIDs(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return 0, 0, false
	}
	tid, ok := topicID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid topic ID"})
		return 0, 0, false
	}
	return userID, tid, true
}

func (h *Handler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	userID, tid, ok := requestIDs(w, r)
	if !ok {
		return
	}

	var req models.SubmitAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	resp, err := h.service.SubmitAttempt(r.Context(), userID, tid, mux.Vars(r)["questionID"], req)
	if err != nil {
		writeError(w, "SubmitAttempt", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GradeAssessment(w http.ResponseWriter, r *http.Request) {
	userID, tid, ok := requestIDs(w, r)
	if !ok {
		return
	}

	var req models.GradeAssessmentRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
			return
		}
	}

	result, err := h.service.GradeAssessment(r.Context(), userID, tid, req)
	if err != nil {
		writeError(w, "GradeAssessment", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) GetEvaluation(w http.ResponseWriter, r *http.Request) {
	userID, tid, ok := requestIDs(w, r)
	if !ok {
		return
	}
	result, err := h.service.GetEvaluation(r.Context(), userID, tid)
	if err != nil {
		writeError(w, "GetEvaluation", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	userID, tid, ok := requestIDs(w, r)
	if !ok {
		return
	}
	progress, err := h.service.GetProgress(r.Context(), userID, tid)
	if err != nil {
		writeError(w, "GetProgress", err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *Handler) SetDefaultQuestionSet(w http.ResponseWriter, r *http.Request) {
	if _, ok := getUserID(r); !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}
	tid, ok := topicID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid topic ID"})
		return
	}
	var req models.DefaultQuestionSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if err := h.service.SetDefaultQuestionSet(r.Context(), tid, req); err != nil {
		writeError(w, "SetDefaultQuestionSet", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Helpers ─────────────────────────────────────────────

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrAlreadyCorrect), errors.Is(err, models.ErrGradingInProgress):
		return http.StatusConflict
	case errors.Is(err, models.ErrAttemptsExhausted):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[handler] %s error: %v", op, err)
		writeJSON(w, status, models.ErrorResponse{Error: "Internal server error"})
		return
	}
	writeJSON(w, status, models.ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
