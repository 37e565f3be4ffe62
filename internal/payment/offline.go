package payment

import (
	"context"
	"strings"

	"github.com/google/uuid"

	d "github.com/fjod/go_cart/storefront/domain"
)

// CashOnDelivery never leaves the process; payment is collected on delivery.
type CashOnDelivery struct{}

func (CashOnDelivery) Method() d.PaymentMethod {
	return d.PaymentMethodCOD
}

func (CashOnDelivery) Submit(_ context.Context, _ Request) (*d.PaymentAttempt, error) {
	return &d.PaymentAttempt{
		Method:    d.PaymentMethodCOD,
		Reference: "COD-" + uuid.NewString(),
		Status:    d.PaymentStatusPending,
	}, nil
}

// UPI records an optional virtual payment address without validating it.
type UPI struct{}

func (UPI) Method() d.PaymentMethod {
	return d.PaymentMethodUPI
}

func (UPI) Submit(_ context.Context, req Request) (*d.PaymentAttempt, error) {
	ref := "UPI-" + uuid.NewString()
	if addr := strings.TrimSpace(req.UPIAddress); addr != "" {
		ref += ":" + addr
	}
	return &d.PaymentAttempt{
		Method:    d.PaymentMethodUPI,
		Reference: ref,
		Status:    d.PaymentStatusPending,
	}, nil
}
