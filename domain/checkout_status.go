package domain

type CheckoutState string

const (
	CheckoutStateIdle              CheckoutState = "IDLE"
	CheckoutStateShippingCapture   CheckoutState = "SHIPPING_CAPTURE"
	CheckoutStatePaymentSelection  CheckoutState = "PAYMENT_SELECTION"
	CheckoutStatePaymentProcessing CheckoutState = "PAYMENT_PROCESSING"
	CheckoutStateCompleted         CheckoutState = "COMPLETED"
	CheckoutStateFailed            CheckoutState = "FAILED"
)

var checkoutTransitions = map[CheckoutState][]CheckoutState{
	CheckoutStateIdle:              {CheckoutStateShippingCapture},
	CheckoutStateShippingCapture:   {CheckoutStatePaymentSelection, CheckoutStateIdle},
	CheckoutStatePaymentSelection:  {CheckoutStatePaymentProcessing, CheckoutStateShippingCapture, CheckoutStateIdle},
	CheckoutStatePaymentProcessing: {CheckoutStateCompleted, CheckoutStateFailed, CheckoutStateIdle},
	CheckoutStateFailed:            {CheckoutStatePaymentSelection, CheckoutStateIdle},
	CheckoutStateCompleted:         {CheckoutStateIdle},
}

// CanTransitionTo reports whether the checkout state machine allows moving from
// `from` to `to`.
func CanTransitionTo(from, to CheckoutState) bool {
	for _, next := range checkoutTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal is true only for Completed; Failed hands control back to payment
// selection.
func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStateCompleted
}

// String representation (for logging)
func (s CheckoutState) String() string {
	return string(s)
}
