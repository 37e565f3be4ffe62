package checkout

import "errors"

var (
	ErrSubmitInFlight    = errors.New("order submission already in progress")
	ErrIllegalTransition = errors.New("illegal transition of checkout state")
)
