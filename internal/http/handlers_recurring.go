package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"moneta/internal/core"
	"moneta/internal/log"
	"moneta/internal/schedule"
	"moneta/internal/storage"
)

type createRuleRequest struct {
	Type           string `json:"type"`
	Amount         string `json:"amount"`
	Frequency      string `json:"frequency"`
	DueDay         int    `json:"due_day,omitempty"`
	DueWeekday     int    `json:"due_weekday,omitempty"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date,omitempty"`
	MaxOccurrences int    `json:"max_occurrences,omitempty"`
	CategoryID     string `json:"category_id,omitempty"`
	Description    string `json:"description"`
}

type ruleResponse struct {
	ID             string  `json:"id"`
	Type           string  `json:"type"`
	AmountCents    int64   `json:"amount_cents"`
	Amount         string  `json:"amount"`
	Frequency      string  `json:"frequency"`
	DueDay         int     `json:"due_day,omitempty"`
	DueWeekday     int     `json:"due_weekday,omitempty"`
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date,omitempty"`
	MaxOccurrences int     `json:"max_occurrences,omitempty"`
	ExecutedCount  int     `json:"executed_count"`
	LastExecutedAt string  `json:"last_executed_at,omitempty"`
	CategoryID     string  `json:"category_id,omitempty"`
	Description    string  `json:"description"`
	Active         bool    `json:"active"`
	NextDueDate    string  `json:"next_due_date,omitempty"`
	Overdue        bool    `json:"overdue"`
	Progress       float64 `json:"progress"`
}

// toRuleResponse decorates a stored rule with its schedule state at now.
func (s *Server) toRuleResponse(rule core.RecurrenceRule, now time.Time) ruleResponse {
	resp := ruleResponse{
		ID:             rule.ID,
		Type:           string(rule.Type),
		AmountCents:    rule.Amount.Cents,
		Amount:         rule.Amount.String(),
		Frequency:      string(rule.Frequency),
		DueDay:         rule.DueDay,
		DueWeekday:     int(rule.DueWeekday),
		StartDate:      rule.StartDate.Format("2006-01-02"),
		MaxOccurrences: rule.MaxOccurrences,
		ExecutedCount:  rule.ExecutedCount,
		CategoryID:     rule.CategoryID,
		Description:    rule.Description,
		Active:         schedule.IsActive(rule, now),
		Progress:       schedule.ProgressRatio(rule),
	}
	if !rule.EndDate.IsZero() {
		resp.EndDate = rule.EndDate.Format("2006-01-02")
	}
	if !rule.LastExecutedAt.IsZero() {
		resp.LastExecutedAt = rule.LastExecutedAt.Format("2006-01-02")
	}

	if next, err := schedule.ScheduledDueDate(rule); err == nil {
		resp.NextDueDate = next.Format("2006-01-02")
	}
	if overdue, err := schedule.IsOverdue(rule, now); err == nil {
		resp.Overdue = overdue
	}
	return resp
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req createRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount: "+err.Error())
		return
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid start_date")
		return
	}
	var endDate time.Time
	if req.EndDate != "" {
		endDate, err = time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid end_date")
			return
		}
	}

	rule := core.RecurrenceRule{
		ID:             uuid.NewString(),
		Type:           core.TransactionType(req.Type),
		Amount:         core.Money{Cents: cents},
		Frequency:      core.Frequency(req.Frequency),
		DueDay:         req.DueDay,
		DueWeekday:     time.Weekday(req.DueWeekday),
		StartDate:      startDate,
		EndDate:        endDate,
		MaxOccurrences: req.MaxOccurrences,
		CategoryID:     sanitizeInput(req.CategoryID),
		Description:    sanitizeInput(req.Description),
	}
	if err := rule.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := s.store.CreateRule(r.Context(), rule); err != nil {
		s.logger.ErrorContext(r.Context(), "failed to create rule", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to save rule")
		return
	}

	writeJSON(w, http.StatusCreated, s.toRuleResponse(rule, time.Now()))
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.store.ListRules(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to list rules", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to list rules")
		return
	}

	now := time.Now()
	out := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, s.toRuleResponse(rule, now))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rules": out,
		"count": len(out),
	})
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.store.GetRule(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "rule not found")
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to get rule", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to get rule")
		return
	}
	writeJSON(w, http.StatusOK, s.toRuleResponse(rule, time.Now()))
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteRule(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "rule not found")
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to delete rule", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to delete rule")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
