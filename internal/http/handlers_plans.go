package http

import (
	"log/slog"
	"net/http"
)

func (s *Server) handleGetPlans(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	plans, err := s.plans.GetPlans(r.Context(), month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPlanPayloads(plans))
}

func (s *Server) handleSyncPlans(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	plans, err := s.plans.Resync(r.Context(), month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Plans synced", "month", month.String(), "plans", len(plans))
	writeJSON(w, http.StatusOK, toPlanPayloads(plans))
}

type flexRequest struct {
	Adjustment float64 `json:"adjustment"`
}

func (s *Server) handleFlex(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req flexRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	plans, err := s.plans.ApplyFlexAdjustment(r.Context(), month, req.Adjustment)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Flex adjustment applied",
		"month", month.String(), "adjustment", req.Adjustment)
	writeJSON(w, http.StatusOK, toPlanPayloads(plans))
}
