package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/opiniontrade/internal/domain"
)

// TradeService lists trade history for the trade handler.
type TradeService interface {
	Trades(ctx context.Context, userID string, active *bool) ([]domain.Trade, error)
}

// TradeHandler serves trade history endpoints.
type TradeHandler struct {
	trades TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler with the given service and logger.
func NewTradeHandler(trades TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{
		trades: trades,
		logger: logger,
	}
}

type listTradesResponse struct {
	Trades []domain.Trade `json:"trades"`
}

// ListTrades returns a user's trades, optionally filtered to trades in open
// (active=true) or resolved (active=false) markets.
// GET /api/trades?user_id=...&active=true
func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter required")
		return
	}

	trades, err := h.trades.Trades(r.Context(), userID, boolQuery(r, "active"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if trades == nil {
		trades = []domain.Trade{}
	}

	writeJSON(w, http.StatusOK, listTradesResponse{Trades: trades})
}
