package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

// NewRouter wires the UI-facing API. The returned handler is instrumented with
// OpenTelemetry.
func NewRouter(cfg RouterConfig, logger *slog.Logger, sessions *SessionHandler, checkouts *CheckoutHandler, orders *OrdersHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestIDHeader)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Get("/", sessions.Get)
			r.Post("/login", sessions.Login)
			r.Post("/register", sessions.Register)
			r.Post("/logout", sessions.Logout)
		})
		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", checkouts.Get)
			r.Post("/begin", checkouts.Begin)
			r.Put("/shipping", checkouts.UpdateShipping)
			r.Post("/shipping/confirm", checkouts.ConfirmShipping)
			r.Post("/shipping/edit", checkouts.EditShipping)
			r.Post("/payment-method", checkouts.SelectPaymentMethod)
			r.Put("/payment-details", checkouts.SetPaymentDetails)
			r.Get("/summary", checkouts.Summary)
			r.Post("/submit", checkouts.Submit)
			r.Post("/abandon", checkouts.Abandon)
		})
		if orders != nil {
			r.Get("/orders/{order_id}", orders.GetOrder)
		}
	})

	return otelhttp.NewHandler(r, "storefront")
}
