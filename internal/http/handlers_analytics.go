package http

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"zenith/internal/core"
	"zenith/internal/log"
)

type summaryResponse struct {
	Last30Days       core.Summary    `json:"last30Days"`
	MonthlyTotal     decimal.Decimal `json:"monthlyTotal"`
	TransactionCount int             `json:"transactionCount"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":       "ok",
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"uptime":       time.Since(s.started).Round(time.Second).String(),
		"transactions": len(s.deps.Ledger.All()),
	})
}

// snapshot serves every analytics read from the cached snapshot.
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) (*core.Snapshot, bool) {
	snap, err := s.deps.Snapshots.Get(r.Context())
	if err != nil {
		writeInternal(w, r, log.OpSnapshot, err)
		return nil, false
	}
	return snap, true
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if snap, ok := s.snapshot(w, r); ok {
		writeJSON(w, r, http.StatusOK, snap)
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, summaryResponse{
		Last30Days:       snap.Last30Days,
		MonthlyTotal:     snap.MonthlyTotal,
		TransactionCount: snap.TransactionCount,
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	cats := snap.Categories
	if cats == nil {
		cats = []core.CategoryTotal{}
	}
	writeJSON(w, r, http.StatusOK, cats)
}

func (s *Server) handleRecurring(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	groups := snap.Recurring
	if groups == nil {
		groups = []core.RecurringGroup{}
	}
	writeJSON(w, r, http.StatusOK, groups)
}
