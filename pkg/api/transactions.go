// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/luxfi/adengine/pkg/core"
	"github.com/luxfi/adengine/pkg/ids"
	"github.com/luxfi/adengine/pkg/ledger"
)

type addTransactionRequest struct {
	Value            decimal.Decimal `json:"value"`
	ConfirmationType string          `json:"confirmation_type"`
}

type transactionsResponse struct {
	Transactions []ledger.Transaction `json:"transactions"`
	Total        decimal.Decimal      `json:"total"`
}

// POST /transactions
func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	var req addTransactionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	confirmationType, err := core.ParseConfirmationType(req.ConfirmationType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	tx, err := s.ledger.Add(r.Context(), req.Value, confirmationType)
	if err != nil {
		writeError(w, ledgerStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// GET /transactions?from=RFC3339&to=RFC3339. Both bounds are inclusive; from
// defaults to the beginning of time and to defaults to now.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	from, err := parseTimeParam(r, "from", time.Time{})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := parseTimeParam(r, "to", s.clock.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	txs, err := s.ledger.GetForDateRange(r.Context(), from, to)
	if err != nil {
		writeError(w, ledgerStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, transactionsResponse{
		Transactions: txs,
		Total:        ledger.Sum(txs),
	})
}

// DELETE /transactions
func (s *Server) handleRemoveTransactions(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.RemoveAll(r.Context()); err != nil {
		writeError(w, ledgerStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /transactions/{id}/redeem
func (s *Server) handleRedeemTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := ids.FromString(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	tx, err := s.ledger.MarkRedeemed(r.Context(), id, s.clock.Now())
	if err != nil {
		writeError(w, ledgerStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func parseTimeParam(r *http.Request, name string, def time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", name, err)
	}
	return t, nil
}

func ledgerStatus(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrAlreadyRedeemed), errors.Is(err, ledger.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInvalidTransaction), errors.Is(err, ledger.ErrRedeemedBeforeCreated):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
