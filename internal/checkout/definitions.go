package checkout

import (
	"context"

	d "github.com/fjod/go_cart/storefront/domain"
)

type CartService interface {
	GetCart(ctx context.Context) (*d.CartSnapshot, error)
}

type OrderService interface {
	CreatePaymentIntent(ctx context.Context, amount float64) (string, error)
	PlaceOrder(ctx context.Context, req d.PlaceOrderRequest) (*d.Order, error)
}

// SessionProvider is the part of the session manager checkout relies on.
type SessionProvider interface {
	IsAuthenticated() bool
	Token() string
	User() *d.User
	Expire(ctx context.Context, reason string)
}

// View is the checkout state shown to the user.
type View struct {
	State            d.CheckoutState   `json:"state"`
	CheckoutID       string            `json:"checkoutId,omitempty"`
	Shipping         d.ShippingDraft   `json:"shipping"`
	FieldErrors      []d.FieldError    `json:"fieldErrors,omitempty"`
	PaymentMethod    d.PaymentMethod   `json:"paymentMethod,omitempty"`
	AvailableMethods []d.PaymentMethod `json:"availableMethods"`
	PaymentReady     bool              `json:"paymentReady"`
	PaymentCaptured  bool              `json:"paymentCaptured"`
	IntentPending    bool              `json:"intentPending"`
	Submitting       bool              `json:"submitting"`
	ErrorCode        string            `json:"errorCode,omitempty"`
	ErrorMessage     string            `json:"errorMessage,omitempty"`
	Order            *d.Order          `json:"order,omitempty"`
}

// Summary is the order summary built from a freshly fetched cart.
type Summary struct {
	Cart   *d.CartSnapshot  `json:"cart"`
	Prices d.PriceBreakdown `json:"prices"`
}
