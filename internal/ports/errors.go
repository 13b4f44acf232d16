package ports

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Amund211/serverstats/internal/domain"
	"github.com/Amund211/serverstats/internal/logging"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Cause   string `json:"cause"`
}

// statusForError maps application errors to a status code and a cause safe to show to clients
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidTableQuery):
		return http.StatusBadRequest, "invalid table query"
	case errors.Is(err, domain.ErrServerNotFound):
		return http.StatusNotFound, "server not found"
	case errors.Is(err, domain.ErrBindingNotFound):
		return http.StatusNotFound, "no stats for server"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, domain.ErrTemporarilyUnavailable):
		return http.StatusServiceUnavailable, "temporarily unavailable"
	case domain.IsConfigurationError(err):
		return http.StatusInternalServerError, "stats misconfigured"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, data any) {
	marshalled, err := json.Marshal(data)
	if err != nil {
		ctx := r.Context()
		logging.FromContext(ctx).ErrorContext(ctx, "Failed to marshal response", slog.String("error", err.Error()))
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(marshalled)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	statusCode, cause := statusForError(err)

	logging.FromContext(ctx).InfoContext(ctx, "Returning error", slog.Int("statusCode", statusCode), slog.String("error", err.Error()))

	writeJSON(w, r, statusCode, errorResponse{Success: false, Cause: cause})
}

func writeCause(w http.ResponseWriter, r *http.Request, statusCode int, cause string) {
	writeJSON(w, r, statusCode, errorResponse{Success: false, Cause: cause})
}
