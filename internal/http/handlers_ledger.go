package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"hodl/internal/core"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txns, err := s.txns.ListAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]transactionPayload, 0, len(txns))
	for _, t := range txns {
		out = append(out, transactionPayload{
			ID:         t.ID,
			AssetID:    t.AssetID,
			Amount:     t.Amount,
			DateMillis: t.DateMillis,
			Source:     string(t.Source),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAppendTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionPayload
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if req.Source == "" {
		req.Source = string(core.SourceManual)
	}

	txn := req.toDomain()
	if err := txn.Validate(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	id, err := s.txns.Append(r.Context(), txn)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req.ID = id

	s.notifyLedgerChanged(r.Context(), core.NewMonthLabel(time.UnixMilli(txn.DateMillis)))
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) handleListAllocations(w http.ResponseWriter, r *http.Request) {
	allocs, err := s.allocs.ListAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]allocationPayload, 0, len(allocs))
	for _, a := range allocs {
		out = append(out, allocationPayload{
			ID:         a.ID,
			AssetID:    a.AssetID,
			GoalID:     a.GoalID,
			Amount:     a.Amount,
			MonthLabel: a.MonthLabel.String(),
			Timestamp:  a.Timestamp,
			CreatedAt:  a.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAppendAllocation(w http.ResponseWriter, r *http.Request) {
	var req allocationPayload
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	alloc := req.toDomain()
	if err := alloc.Validate(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	id, err := s.allocs.Append(r.Context(), alloc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req.ID = id

	s.notifyLedgerChanged(r.Context(), alloc.MonthLabel)
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.goals.ListAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]goalPayload, 0, len(goals))
	for _, g := range goals {
		out = append(out, goalPayload{
			ID:           g.ID,
			Name:         g.Name,
			Currency:     g.Currency,
			TargetAmount: g.TargetAmount,
			CurrentTotal: g.CurrentTotal,
			TargetMonth:  g.TargetMonth.String(),
			Active:       g.Active,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpsertGoal(w http.ResponseWriter, r *http.Request) {
	var req goalPayload
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	goal := req.toDomain()
	if err := goal.Validate(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if goal.TargetMonth != "" {
		if err := goal.TargetMonth.Validate(); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
	}

	if err := s.goals.Upsert(r.Context(), goal); err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Goal saved", "goal_id", goal.ID, "name", goal.Name)
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.assets.ListAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]assetPayload, 0, len(assets))
	for _, a := range assets {
		out = append(out, assetPayload{ID: a.ID, Symbol: a.Symbol, Name: a.Name, Address: a.Address})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpsertAsset(w http.ResponseWriter, r *http.Request) {
	var req assetPayload
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if strings.TrimSpace(req.Symbol) == "" {
		writeBadRequest(w, "empty asset symbol")
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	if err := s.assets.Upsert(r.Context(), req.toDomain()); err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Asset saved", "asset_id", req.ID, "symbol", req.Symbol)
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	to := strings.TrimSpace(r.URL.Query().Get("to"))
	if to == "" {
		to = "eur"
	}

	assets, err := s.assets.ListAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	symbols := make([]string, 0, len(assets))
	for _, a := range assets {
		symbols = append(symbols, a.Symbol)
	}

	writeJSON(w, http.StatusOK, s.rates.Rates(r.Context(), to, symbols))
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	assets, err := s.assets.ListAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, s.rates.Balances(r.Context(), assets))
}

// notifyLedgerChanged is fire-and-forget: a dead broker never fails a
// ledger write.
func (s *Server) notifyLedgerChanged(ctx context.Context, month core.MonthLabel) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishLedgerChanged(ctx, month); err != nil {
		slog.WarnContext(ctx, "Failed to publish ledger change",
			"month", month.String(), "error", err)
	}
}
