package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/obsvault/authgate"
)

// MessageBody is the JSON envelope of every message-only response.
type MessageBody struct {
	Message string `json:"message"`
}

// WriteError maps err to a curated status and message, logs both, and
// writes the message as JSON. The raw error is logged but never sent.
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, message := authgate.HTTPError(err)
	if logger == nil {
		logger = slog.Default()
	}

	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.LogAttrs(r.Context(), level, "request rejected",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("message", message),
		slog.String("error", err.Error()),
	)

	WriteJSON(w, status, MessageBody{Message: message})
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
