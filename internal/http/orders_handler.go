package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	d "github.com/fjod/go_cart/storefront/domain"
)

type OrderLookup interface {
	GetOrder(ctx context.Context, id string) (*d.Order, error)
}

type OrdersHandler struct {
	orders  OrderLookup
	timeout time.Duration
}

func NewOrdersHandler(orders OrderLookup, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
	}
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id is required")
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
