package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/opiniontrade/internal/domain"
	"github.com/alanyoungcy/opiniontrade/internal/service"
)

// MarketService defines the methods that the market handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type MarketService interface {
	Create(ctx context.Context, question, description string) (domain.Market, error)
	Get(ctx context.Context, id string) (domain.Market, error)
	List(ctx context.Context) ([]domain.MarketSummary, error)
}

// SettlementService is the resolution entry point the handler needs.
type SettlementService interface {
	DeclareResult(ctx context.Context, marketID string, outcome bool) (service.ResolutionSummary, error)
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	markets    MarketService
	settlement SettlementService
	logger     *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given services and logger.
func NewMarketHandler(markets MarketService, settlement SettlementService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets:    markets,
		settlement: settlement,
		logger:     logger,
	}
}

type createMarketRequest struct {
	Question    string `json:"question"`
	Description string `json:"description"`
}

// CreateMarket opens a new binary market.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	market, err := h.markets.Create(r.Context(), req.Question, req.Description)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, market)
}

type listMarketsResponse struct {
	Markets []domain.MarketSummary `json:"markets"`
}

// ListMarkets returns all open markets with their best quotes.
// GET /api/markets
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := h.markets.List(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if markets == nil {
		markets = []domain.MarketSummary{}
	}
	writeJSON(w, http.StatusOK, listMarketsResponse{Markets: markets})
}

// GetMarket returns a single market by its ID.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	market, err := h.markets.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, market)
}

type resolveMarketRequest struct {
	Outcome *bool `json:"outcome"`
}

// ResolveMarket declares the outcome of a market and settles every trade.
// POST /api/markets/{id}/resolve
func (h *MarketHandler) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	var req resolveMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Outcome == nil {
		writeError(w, http.StatusBadRequest, "outcome is required")
		return
	}

	summary, err := h.settlement.DeclareResult(r.Context(), id, *req.Outcome)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
