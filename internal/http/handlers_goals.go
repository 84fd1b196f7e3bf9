package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"moneta/internal/core"
	"moneta/internal/log"
	"moneta/internal/storage"
)

type createGoalRequest struct {
	Name     string `json:"name"`
	Target   string `json:"target"`
	Deadline string `json:"deadline,omitempty"`
}

type goalResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	TargetCents int64   `json:"target_cents"`
	Target      string  `json:"target"`
	SavedCents  int64   `json:"saved_cents"`
	Saved       string  `json:"saved"`
	Deadline    string  `json:"deadline,omitempty"`
	Progress    float64 `json:"progress"`
}

func toGoalResponse(g core.Goal) goalResponse {
	resp := goalResponse{
		ID:          g.ID,
		Name:        g.Name,
		TargetCents: g.TargetAmount.Cents,
		Target:      g.TargetAmount.String(),
		SavedCents:  g.SavedAmount.Cents,
		Saved:       g.SavedAmount.String(),
		Progress:    g.Progress(),
	}
	if !g.Deadline.IsZero() {
		resp.Deadline = g.Deadline.Format("2006-01-02")
	}
	return resp
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req createGoalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cents, err := core.ParseDecimalToCents(req.Target)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid target amount: "+err.Error())
		return
	}

	var deadline time.Time
	if req.Deadline != "" {
		deadline, err = time.Parse("2006-01-02", req.Deadline)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid deadline")
			return
		}
	}

	goal := core.Goal{
		ID:           uuid.NewString(),
		Name:         sanitizeInput(req.Name),
		TargetAmount: core.Money{Cents: cents},
		Deadline:     deadline,
	}
	if err := goal.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := s.store.CreateGoal(r.Context(), goal); err != nil {
		s.logger.ErrorContext(r.Context(), "failed to create goal", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to save goal")
		return
	}
	writeJSON(w, http.StatusCreated, toGoalResponse(goal))
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.store.ListGoals(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to list goals", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to list goals")
		return
	}

	out := make([]goalResponse, 0, len(goals))
	for _, g := range goals {
		out = append(out, toGoalResponse(g))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"goals": out,
		"count": len(out),
	})
}

type goalContributionRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) handleGoalContribution(w http.ResponseWriter, r *http.Request) {
	var req goalContributionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount: "+err.Error())
		return
	}

	id := r.PathValue("id")
	if err := s.store.AddToGoal(r.Context(), id, cents); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "goal not found")
			return
		}
		s.logger.ErrorContext(r.Context(), "failed to add to goal",
			log.FieldGoalID, id, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to update goal")
		return
	}

	goal, err := s.store.GetGoal(r.Context(), id)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to reload goal",
			log.FieldGoalID, id, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to reload goal")
		return
	}
	writeJSON(w, http.StatusOK, toGoalResponse(goal))
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteGoal(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "goal not found")
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to delete goal", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to delete goal")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
