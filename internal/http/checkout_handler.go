package http

import (
	"context"
	"net/http"
	"time"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/checkout"
)

type CheckoutService interface {
	View() checkout.View
	Begin(ctx context.Context) error
	UpdateShipping(draft d.ShippingDraft) ([]d.FieldError, error)
	ConfirmShipping(ctx context.Context) error
	EditShipping() error
	SelectPaymentMethod(ctx context.Context, m d.PaymentMethod) error
	SetCardDetails(card d.CardDetails) error
	SetUPIAddress(addr string) error
	Summary(ctx context.Context) (*checkout.Summary, error)
	Submit(ctx context.Context) (*d.Order, error)
	Abandon()
}

type CheckoutHandler struct {
	checkout CheckoutService
	timeout  time.Duration
}

func NewCheckoutHandler(c CheckoutService, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: c,
		timeout:  timeout,
	}
}

type PaymentMethodRequestDTO struct {
	Method d.PaymentMethod `json:"method"`
}

type PaymentDetailsRequestDTO struct {
	Card       *d.CardDetails `json:"card,omitempty"`
	UPIAddress *string        `json:"upiAddress,omitempty"`
}

// GET /api/v1/checkout
func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.checkout.View())
}

// POST /api/v1/checkout/begin
func (h *CheckoutHandler) Begin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.checkout.Begin(ctx); err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.checkout.View())
}

// PUT /api/v1/checkout/shipping
func (h *CheckoutHandler) UpdateShipping(w http.ResponseWriter, r *http.Request) {
	var req d.ShippingDraft
	if !decodeJSON(w, r, &req) {
		return
	}

	if _, err := h.checkout.UpdateShipping(req); err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.checkout.View())
}

// POST /api/v1/checkout/shipping/confirm
func (h *CheckoutHandler) ConfirmShipping(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.checkout.ConfirmShipping(ctx); err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.checkout.View())
}

// POST /api/v1/checkout/shipping/edit
func (h *CheckoutHandler) EditShipping(w http.ResponseWriter, r *http.Request) {
	if err := h.checkout.EditShipping(); err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.checkout.View())
}

// POST /api/v1/checkout/payment-method
func (h *CheckoutHandler) SelectPaymentMethod(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req PaymentMethodRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.Method.Valid() {
		respondError(w, http.StatusBadRequest, "invalid_payment_method", "method must be one of card, cod, upi")
		return
	}

	if err := h.checkout.SelectPaymentMethod(ctx, req.Method); err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.checkout.View())
}

// PUT /api/v1/checkout/payment-details
func (h *CheckoutHandler) SetPaymentDetails(w http.ResponseWriter, r *http.Request) {
	var req PaymentDetailsRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	var err error
	switch {
	case req.Card != nil:
		err = h.checkout.SetCardDetails(*req.Card)
	case req.UPIAddress != nil:
		err = h.checkout.SetUPIAddress(*req.UPIAddress)
	default:
		respondError(w, http.StatusBadRequest, "invalid_request", "card or upiAddress is required")
		return
	}
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.checkout.View())
}

// GET /api/v1/checkout/summary
func (h *CheckoutHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	summary, err := h.checkout.Summary(ctx)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// POST /api/v1/checkout/submit
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.checkout.Submit(ctx)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

// POST /api/v1/checkout/abandon
func (h *CheckoutHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	h.checkout.Abandon()
	respondJSON(w, http.StatusOK, h.checkout.View())
}
