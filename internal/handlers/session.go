package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"poetica-backend/internal/apperr"
	"poetica-backend/internal/models"
)

// SessionIssuer is satisfied by *middleware.JWTAuth.
type SessionIssuer interface {
	IssueSessionToken() (token, sessionID string, expiresAt time.Time, err error)
}

type SessionHandler struct {
	auth   SessionIssuer
	logger *zap.Logger
}

func NewSessionHandler(auth SessionIssuer, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{auth: auth, logger: logger}
}

// POST /api/v1/session
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	token, sessionID, expiresAt, err := h.auth.IssueSessionToken()
	if err != nil {
		h.logger.Error("failed to sign session token", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Could not start a session", r))
		return
	}

	writeJSON(w, http.StatusCreated, models.SessionResponse{
		Token:     token,
		SessionID: sessionID,
		ExpiresAt: expiresAt.Unix(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var e *apperr.Error
	if !errors.As(err, &e) {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
		return
	}

	code := e.Kind.String()
	switch e.Kind {
	case apperr.KindInvalidInput:
		writeJSON(w, http.StatusBadRequest, errorResp(code, e.Message, r))
	case apperr.KindNotFound:
		writeJSON(w, http.StatusNotFound, errorResp(code, e.Message, r))
	case apperr.KindBusy:
		writeJSON(w, http.StatusConflict, errorResp(code, e.Message, r))
	case apperr.KindAgentUnavailable, apperr.KindMalformedResponse:
		writeJSON(w, http.StatusBadGateway, errorResp(code, e.Message, r))
	case apperr.KindStorageUnavailable:
		writeJSON(w, http.StatusServiceUnavailable, errorResp(code, e.Message, r))
	default:
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}
