package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/opiniontrade/internal/domain"
	"github.com/alanyoungcy/opiniontrade/internal/service"
)

// OrderService defines the methods that the order handler requires from the
// service layer.
type OrderService interface {
	PlaceOrder(ctx context.Context, marketID string, order domain.Order) (service.PlaceOrderResult, error)
	Depth(ctx context.Context, marketID string) (domain.BookDepth, error)
}

// OrderHandler serves order placement and book depth endpoints.
type OrderHandler struct {
	orders OrderService
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler with the given service and logger.
func NewOrderHandler(orders OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orders: orders,
		logger: logger,
	}
}

type placeOrderRequest struct {
	UserID   string `json:"user_id"`
	Side     string `json:"side"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
}

// PlaceOrder submits a limit order against a market's book.
// POST /api/markets/{id}/orders
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")
	if marketID == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	side := domain.Side(req.Side)
	if !side.Valid() {
		writeError(w, http.StatusBadRequest, "side must be \"favour\" or \"against\"")
		return
	}

	result, err := h.orders.PlaceOrder(r.Context(), marketID, domain.Order{
		UserID:   req.UserID,
		Side:     side,
		Price:    req.Price,
		Quantity: req.Quantity,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// GetBook returns the per-price aggregated depth of a market's book.
// GET /api/markets/{id}/book
func (h *OrderHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")
	if marketID == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	depth, err := h.orders.Depth(r.Context(), marketID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, depth)
}
