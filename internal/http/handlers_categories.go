package http

import (
	"net/http"

	"github.com/google/uuid"

	"moneta/internal/core"
	"moneta/internal/log"
)

type createCategoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type categoryResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := sanitizeInput(req.Name)
	if name == "" {
		writeError(w, http.StatusUnprocessableEntity, "category name required")
		return
	}
	color := sanitizeInput(req.Color)
	if color == "" {
		color = "#607d8b"
	}

	cat := core.Category{ID: uuid.NewString(), Name: name, Color: color}
	if err := s.store.CreateCategory(r.Context(), cat); err != nil {
		s.logger.ErrorContext(r.Context(), "failed to create category", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to save category")
		return
	}
	writeJSON(w, http.StatusCreated, categoryResponse(cat))
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.store.ListCategories(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to list categories", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}

	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryResponse(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": out,
		"count":      len(out),
	})
}
