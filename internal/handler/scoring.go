package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ctf-scoreboard/internal/domain"
)

type submitRequest struct {
	Flag string `json:"flag"`
}

type submitResponse struct {
	Status       domain.SubmissionStatus `json:"status"`
	Message      string                  `json:"message"`
	Points       int64                   `json:"points,omitempty"`
	SubmissionID domain.SubmissionID     `json:"submission_id,omitempty"`
}

// outcomeStatus maps a submission outcome to its HTTP status code
func outcomeStatus(status domain.SubmissionStatus) int {
	switch status {
	case domain.StatusAccepted:
		return http.StatusOK
	case domain.StatusCompetitionClosed:
		return http.StatusForbidden
	case domain.StatusInvalidFlag:
		return http.StatusBadRequest
	case domain.StatusAlreadySubmitted:
		return http.StatusConflict
	case domain.StatusUnknownUser:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// SubmitFlag handles flag submission for the session user
func (h *Handler) SubmitFlag(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if h.limiter != nil {
		if err := h.limiter.Allow(r.Context(), user.ID); err != nil {
			if errors.Is(err, domain.ErrRateLimited) {
				h.writeError(w, http.StatusTooManyRequests, err)
				return
			}
			// Fail open when the limiter backend is unreachable.
			h.logger.Warn("rate limiter unavailable", "error", err)
		}
	}

	outcome, err := h.scorer.Submit(r.Context(), user.ID, req.Flag, h.now())
	if err != nil {
		h.logger.Error("failed to submit flag", "user_id", user.ID, "error", err)
	}

	resp := submitResponse{
		Status:       outcome.Status,
		Message:      outcome.Message(),
		Points:       outcome.Points,
		SubmissionID: outcome.SubmissionID,
	}
	if !outcome.Accepted() {
		h.writeJSON(w, outcomeStatus(outcome.Status), APIResponse{
			Success: false,
			Data:    resp,
			Error:   resp.Message,
		})
		return
	}
	h.writeSuccess(w, resp)
}

// GetScoreboard returns every user in rank order
func (h *Handler) GetScoreboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.board.Rank(r.Context())
	if err != nil {
		h.logger.Error("failed to get scoreboard", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}
	h.writeSuccess(w, entries)
}

// GetCompetition returns the competition name, deadline and flag totals
func (h *Handler) GetCompetition(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.board.CompetitionInfo(h.now()))
}
