package http

import (
	"log/slog"
	"net/http"
)

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := s.lifecycle.Start(r.Context(), month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Execution started", "month", month.String(), "record_id", rec.ID)
	writeJSON(w, http.StatusOK, toRecordPayload(*rec))
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sess, err := s.lifecycle.Session(r.Context(), month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rows, err := s.lifecycle.Complete(r.Context(), sess.Record.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Execution completed", "month", month.String(), "goals", len(rows))
	writeJSON(w, http.StatusOK, toCompletionPayloads(rows))
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sess, err := s.lifecycle.Session(r.Context(), month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.lifecycle.Undo(r.Context(), sess.Record.ID); err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Execution undone", "month", month.String())
	writeJSON(w, http.StatusOK, map[string]string{"status": "reopened"})
}

func (s *Server) handleUndoStart(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sess, err := s.lifecycle.Session(r.Context(), month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.lifecycle.UndoStart(r.Context(), sess.Record.ID); err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Execution start undone", "month", month.String())
	writeJSON(w, http.StatusOK, map[string]string{"status": "draft"})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sess, err := s.lifecycle.Session(r.Context(), month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionPayload(*sess))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	rows, err := s.lifecycle.History(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toHistoryPayloads(rows))
}
