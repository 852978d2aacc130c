package handlers

import (
	"context"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"poetica-backend/internal/collection"
	"poetica-backend/internal/events"
	"poetica-backend/internal/export"
	"poetica-backend/internal/middleware"
	"poetica-backend/internal/models"
)

// PoemLibrary is satisfied by *collection.Library.
type PoemLibrary interface {
	List(ctx context.Context, sessionID string, view collection.View) ([]models.SavedPoem, error)
	Remove(ctx context.Context, sessionID, id string) error
	ToggleFavorite(ctx context.Context, sessionID, id string) (models.SavedPoem, bool, error)
	Get(ctx context.Context, sessionID, id string) (models.SavedPoem, bool, error)
}

type LibraryHandler struct {
	library   PoemLibrary
	poems     PoemGenerator
	publisher events.Publisher
	logger    *zap.Logger
}

func NewLibraryHandler(library PoemLibrary, poems PoemGenerator, publisher events.Publisher, logger *zap.Logger) *LibraryHandler {
	return &LibraryHandler{library: library, poems: poems, publisher: publisher, logger: logger}
}

// GET /api/v1/library?view=all|favorites
func (h *LibraryHandler) List(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())

	view := collection.View(r.URL.Query().Get("view"))
	switch view {
	case "":
		view = collection.ViewAll
	case collection.ViewAll, collection.ViewFavorites:
	default:
		writeJSON(w, http.StatusBadRequest, errorResp("INVALID_INPUT", "view must be all or favorites", r))
		return
	}

	poems, err := h.library.List(r.Context(), sessionID, view)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if poems == nil {
		poems = []models.SavedPoem{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"view":  view,
		"poems": poems,
	})
}

// POST /api/v1/library
func (h *LibraryHandler) Save(w http.ResponseWriter, r *http.Request) {
	saved, err := h.poems.SaveCurrent(r.Context(), middleware.GetSessionID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// DELETE /api/v1/library/{id}
func (h *LibraryHandler) Remove(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.library.Remove(r.Context(), sessionID, id); err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.publisher.Publish(r.Context(), sessionID, models.WSMessage{
		Type:    events.TypeLibraryChanged,
		Payload: map[string]string{"removed": id},
	})
	w.WriteHeader(http.StatusNoContent)
}

// PUT /api/v1/library/{id}/favorite
func (h *LibraryHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())

	poem, found, err := h.library.ToggleFavorite(r.Context(), sessionID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Poem not found", r))
		return
	}

	h.publisher.Publish(r.Context(), sessionID, models.WSMessage{Type: events.TypeLibraryChanged, Payload: poem})
	writeJSON(w, http.StatusOK, poem)
}

// POST /api/v1/library/{id}/copy
func (h *LibraryHandler) Copy(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())

	poem, ok := h.lookup(w, r, sessionID)
	if !ok {
		return
	}

	h.publisher.Publish(r.Context(), sessionID, models.WSMessage{
		Type: events.TypeCopied,
		Payload: models.CopiedEvent{
			PoemID:    poem.ID,
			ExpiresIn: int(export.CopiedTTL.Milliseconds()),
		},
	})
	writeJSON(w, http.StatusOK, export.Copy(poem))
}

// GET /api/v1/library/{id}/export?format=txt|html
func (h *LibraryHandler) Export(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())

	format := r.URL.Query().Get("format")
	switch format {
	case "":
		format = export.FormatText
	case export.FormatText, export.FormatHTML:
	default:
		writeJSON(w, http.StatusBadRequest, errorResp("INVALID_INPUT", "format must be txt or html", r))
		return
	}

	poem, ok := h.lookup(w, r, sessionID)
	if !ok {
		return
	}

	body := export.PlainText(poem.Content)
	if format == export.FormatHTML {
		var err error
		body, err = export.HTML(poem.Title, poem.Content)
		if err != nil {
			h.logger.Error("failed to render poem", zap.String("poem_id", poem.ID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Could not export poem", r))
			return
		}
	}

	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": export.Filename(poem.Title, format),
	}))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (h *LibraryHandler) lookup(w http.ResponseWriter, r *http.Request, sessionID string) (models.SavedPoem, bool) {
	poem, found, err := h.library.Get(r.Context(), sessionID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return models.SavedPoem{}, false
	}
	if !found {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Poem not found", r))
		return models.SavedPoem{}, false
	}
	return poem, true
}
