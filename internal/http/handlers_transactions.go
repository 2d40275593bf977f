package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"zenith/internal/core"
	"zenith/internal/ledger"
	"zenith/internal/log"
)

type transactionRequest struct {
	Amount   flexString `json:"amount"`
	Category string     `json:"category"`
	Item     string     `json:"item"`
	Vendor   string     `json:"vendor"`
	Date     string     `json:"date"`
}

type transactionPatchRequest struct {
	Amount   *flexString `json:"amount"`
	Category *string     `json:"category"`
	Item     *string     `json:"item"`
	Vendor   *string     `json:"vendor"`
	Date     *string     `json:"date"`
}

// today is swapped in tests.
var today = func() core.Date { return core.DateOf(time.Now()) }

func (req transactionRequest) input() (core.TransactionInput, error) {
	amount, err := core.ParseAmount(string(req.Amount))
	if err != nil {
		return core.TransactionInput{}, err
	}
	category, err := core.ParseCategory(req.Category)
	if err != nil {
		return core.TransactionInput{}, err
	}
	date := today()
	if strings.TrimSpace(req.Date) != "" {
		if date, err = core.ParseDate(req.Date); err != nil {
			return core.TransactionInput{}, err
		}
	}
	return core.TransactionInput{
		Amount:   amount,
		Category: category,
		Item:     sanitizeInput(req.Item),
		Vendor:   sanitizeInput(req.Vendor),
		Date:     date,
	}, nil
}

func (req transactionPatchRequest) patch() (core.TransactionPatch, error) {
	var p core.TransactionPatch
	if req.Amount != nil {
		amount, err := core.ParseAmount(string(*req.Amount))
		if err != nil {
			return p, err
		}
		p.Amount = &amount
	}
	if req.Category != nil {
		category, err := core.ParseCategory(*req.Category)
		if err != nil {
			return p, err
		}
		p.Category = &category
	}
	if req.Item != nil {
		item := sanitizeInput(*req.Item)
		p.Item = &item
	}
	if req.Vendor != nil {
		vendor := sanitizeInput(*req.Vendor)
		p.Vendor = &vendor
	}
	if req.Date != nil {
		date, err := core.ParseDate(*req.Date)
		if err != nil {
			return p, err
		}
		p.Date = &date
	}
	return p, nil
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txns := s.deps.Ledger.All()
	if txns == nil {
		txns = []core.Transaction{}
	}
	writeJSON(w, r, http.StatusOK, txns)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	t, found := s.deps.Ledger.Get(id)
	if !found {
		writeError(w, r, http.StatusNotFound, "transaction not found")
		return
	}
	writeJSON(w, r, http.StatusOK, t)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	t, err := s.deps.Ledger.Add(r.Context(), in)
	if err != nil {
		s.writeMutationError(w, r, log.OpCreate, err)
		return
	}
	w.Header().Set("Location", "/api/transactions/"+strconv.FormatInt(t.ID, 10))
	writeJSON(w, r, http.StatusCreated, t)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req transactionPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	patch, err := req.patch()
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	found, err := s.deps.Ledger.Update(r.Context(), id, patch)
	if err != nil {
		s.writeMutationError(w, r, log.OpUpdate, err)
		return
	}
	if !found {
		writeError(w, r, http.StatusNotFound, "transaction not found")
		return
	}
	t, _ := s.deps.Ledger.Get(id)
	writeJSON(w, r, http.StatusOK, t)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	found, err := s.deps.Ledger.Remove(r.Context(), id)
	if err != nil {
		s.writeMutationError(w, r, log.OpDelete, err)
		return
	}
	if !found {
		writeError(w, r, http.StatusNotFound, "transaction not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeMutationError maps validation failures to 422, a write lost to
// another process to 409 and everything else, persistence included, to 500.
func (s *Server) writeMutationError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if isValidationError(err) {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if errors.Is(err, ledger.ErrStale) {
		writeError(w, r, http.StatusConflict, "transactions changed concurrently, retry")
		return
	}
	writeInternal(w, r, op, err)
}

func isValidationError(err error) bool {
	return errors.Is(err, core.ErrInvalidAmount) ||
		errors.Is(err, core.ErrInvalidCategory) ||
		errors.Is(err, core.ErrEmptyItem) ||
		errors.Is(err, core.ErrInvalidDate) ||
		errors.Is(err, core.ErrItemTooLong)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid transaction id")
		return 0, false
	}
	return id, true
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s))
}
