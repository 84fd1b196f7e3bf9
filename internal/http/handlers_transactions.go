package http

import (
	"errors"
	"net/http"
	"time"

	"moneta/internal/core"
	"moneta/internal/log"
	"moneta/internal/storage"
)

type createTransactionRequest struct {
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	OccurredAt  string `json:"occurred_at"`
	CategoryID  string `json:"category_id"`
	Description string `json:"description"`
}

type transactionResponse struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	AmountCents int64  `json:"amount_cents"`
	Amount      string `json:"amount"`
	OccurredAt  string `json:"occurred_at"`
	CategoryID  string `json:"category_id,omitempty"`
	Description string `json:"description"`
}

func toTransactionResponse(tx core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          tx.ID,
		Type:        string(tx.Type),
		AmountCents: tx.Amount.Cents,
		Amount:      tx.Amount.String(),
		OccurredAt:  tx.OccurredAt.Format("2006-01-02"),
		CategoryID:  tx.CategoryID,
		Description: tx.Description,
	}
}

// parseOccurredAt accepts a plain date or a full RFC 3339 timestamp.
func parseOccurredAt(v string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount: "+err.Error())
		return
	}

	occurredAt := time.Now().UTC()
	if req.OccurredAt != "" {
		occurredAt, err = parseOccurredAt(req.OccurredAt)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid occurred_at date")
			return
		}
	}

	tx := core.Transaction{
		Type:        core.TransactionType(req.Type),
		Amount:      core.Money{Cents: cents},
		OccurredAt:  occurredAt,
		CategoryID:  sanitizeInput(req.CategoryID),
		Description: sanitizeInput(req.Description),
	}

	id, err := s.recorder.RecordTransaction(r.Context(), tx, "")
	if err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.ErrorContext(r.Context(), "failed to record transaction", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to save transaction")
		return
	}
	tx.ID = id

	s.invalidateDashboards()
	writeJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

func isValidationError(err error) bool {
	return errors.Is(err, core.ErrInvalidAmount) ||
		errors.Is(err, core.ErrInvalidType) ||
		errors.Is(err, core.ErrInvalidDate) ||
		errors.Is(err, core.ErrEmptyDescription) ||
		errors.Is(err, core.ErrInvalidFrequency)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseTimeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	txs, err := s.store.ListTransactions(r.Context(), from, to)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to list transactions", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionResponse(tx))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": out,
		"count":        len(out),
	})
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.store.GetTransaction(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to get transaction", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to get transaction")
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	err := s.recorder.DeleteTransaction(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to delete transaction", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to delete transaction")
		return
	}
	s.invalidateDashboards()
	w.WriteHeader(http.StatusNoContent)
}
