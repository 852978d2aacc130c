package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"unicode/utf8"

	"go.uber.org/zap"

	"poetica-backend/internal/middleware"
	"poetica-backend/internal/models"
	"poetica-backend/internal/session"
)

const (
	maxBodyBytes   = 64 << 10
	maxPromptRunes = 2000
)

// PoemGenerator is satisfied by *services.PoemService.
type PoemGenerator interface {
	Generate(ctx context.Context, sessionID, prompt, tone string) (session.State, error)
	Current(sessionID string) session.State
	Clear(ctx context.Context, sessionID string) session.State
	SaveCurrent(ctx context.Context, sessionID string) (models.SavedPoem, error)
}

type PoemHandler struct {
	poems  PoemGenerator
	logger *zap.Logger
}

func NewPoemHandler(poems PoemGenerator, logger *zap.Logger) *PoemHandler {
	return &PoemHandler{poems: poems, logger: logger}
}

// POST /api/v1/poems/generate
func (h *PoemHandler) Generate(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())

	var req models.GeneratePoemRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("INVALID_INPUT", "Invalid request body", r))
		return
	}
	if utf8.RuneCountInString(req.Prompt) > maxPromptRunes || utf8.RuneCountInString(req.Tone) > maxPromptRunes {
		writeJSON(w, http.StatusBadRequest, errorResp("INVALID_INPUT", "Prompt is too long", r))
		return
	}

	st, err := h.poems.Generate(r.Context(), sessionID, req.Prompt, req.Tone)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Client went away; the result is kept in the session.
			return
		}
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, st)
}

// GET /api/v1/poems/current
func (h *PoemHandler) Current(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.poems.Current(middleware.GetSessionID(r.Context())))
}

// DELETE /api/v1/poems/current
func (h *PoemHandler) Clear(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.poems.Clear(r.Context(), middleware.GetSessionID(r.Context())))
}
