package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hodl/internal/core"
	"hodl/internal/engine"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps domain errors onto HTTP statuses: missing records are
// 404, lifecycle precondition failures 409, validation failures 400,
// anything else 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrRecordNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrAnotherExecutionActive),
		errors.Is(err, engine.ErrMonthClosed),
		errors.Is(err, engine.ErrNotStarted),
		errors.Is(err, engine.ErrNoSnapshots),
		errors.Is(err, engine.ErrNothingToUndo),
		errors.Is(err, engine.ErrUndoWindowExpired),
		errors.Is(err, engine.ErrStartUndoWindowExpired):
		status = http.StatusConflict
	case errors.Is(err, core.ErrInvalidMonthLabel),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyGoalName),
		errors.Is(err, core.ErrEmptyCurrency):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed",
			"error", err, "method", r.Method, "url", r.URL.Path)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// monthParam extracts and validates the {month} path segment.
func monthParam(r *http.Request) (core.MonthLabel, error) {
	month := core.MonthLabel(chi.URLParam(r, "month"))
	if err := month.Validate(); err != nil {
		return "", err
	}
	return month, nil
}

// decodeJSON decodes a request body, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}
