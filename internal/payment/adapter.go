package payment

import (
	"context"

	d "github.com/fjod/go_cart/storefront/domain"
)

// Request carries what one submission needs. Fields a method does not use are
// ignored by its adapter.
type Request struct {
	Amount       float64
	ClientSecret string
	Card         d.CardDetails
	UPIAddress   string
}

// Adapter submits a payment for one method. Implementations are CardGateway,
// CashOnDelivery and UPI.
type Adapter interface {
	Method() d.PaymentMethod
	Submit(ctx context.Context, req Request) (*d.PaymentAttempt, error)
}
