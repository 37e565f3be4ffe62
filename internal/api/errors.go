package api

import "errors"

var (
	errEmptyIdentity = errors.New("identity response without user")
	errEmptyCart     = errors.New("cart response without cart")
	errEmptyOrder    = errors.New("order response without order")

	// ErrProcessorDisabled is returned when the card processor is not configured.
	ErrProcessorDisabled = errors.New("card processor disabled")
)
