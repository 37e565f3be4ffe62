package publisher

import (
	"time"

	d "github.com/fjod/go_cart/storefront/domain"
)

const (
	EventCheckoutCompleted = "CheckoutCompleted"
	EventCheckoutFailed    = "CheckoutFailed"
)

// Event is the payload written for every finished checkout attempt.
type Event struct {
	Type          string          `json:"event_type"`
	CheckoutID    string          `json:"checkout_id"`
	UserID        string          `json:"user_id,omitempty"`
	OrderID       string          `json:"order_id,omitempty"`
	Method        d.PaymentMethod `json:"payment_method,omitempty"`
	PaymentStatus d.PaymentStatus `json:"payment_status,omitempty"`
	TotalPrice    float64         `json:"total_price"`
	ErrorCode     string          `json:"error_code,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}
