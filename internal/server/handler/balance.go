package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/opiniontrade/internal/domain"
)

// BalanceService exposes account lookups and deposits to the balance handler.
type BalanceService interface {
	Balance(ctx context.Context, userID string) (domain.Balance, error)
	Deposit(ctx context.Context, userID string, amount int64) error
}

// BalanceHandler serves account balance endpoints.
type BalanceHandler struct {
	balances BalanceService
	logger   *slog.Logger
}

// NewBalanceHandler creates a BalanceHandler with the given service and logger.
func NewBalanceHandler(balances BalanceService, logger *slog.Logger) *BalanceHandler {
	return &BalanceHandler{
		balances: balances,
		logger:   logger,
	}
}

// GetBalance returns a user's available and held funds.
// GET /api/balances/{user_id}
func (h *BalanceHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := pathParam(r, "user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	balance, err := h.balances.Balance(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, balance)
}

type depositRequest struct {
	Amount int64 `json:"amount"`
}

// Deposit credits funds to a user's available balance, creating the account
// on first use.
// POST /api/balances/{user_id}/deposit
func (h *BalanceHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID := pathParam(r, "user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.balances.Deposit(r.Context(), userID, req.Amount); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	balance, err := h.balances.Balance(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, balance)
}
