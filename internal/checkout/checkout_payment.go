package checkout

import (
	"context"
	"errors"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/pricing"
)

// SelectPaymentMethod picks the payment method. Selecting card starts payment
// intent creation in the background; submission stays disabled until it lands.
func (o *Orchestrator) SelectPaymentMethod(ctx context.Context, m d.PaymentMethod) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.requireStateLocked(d.CheckoutStatePaymentSelection); err != nil {
		return err
	}
	if o.submitting {
		return ErrSubmitInFlight
	}
	if o.charged != nil {
		return d.NewError(d.KindPrecondition, d.CodePaymentCaptured,
			"Your card has already been charged. Submit again to place your order.")
	}
	if _, ok := o.payments.Get(m); !ok {
		return d.NewError(d.KindPrecondition, d.CodePaymentMethodRequired, "This payment method is not available.")
	}

	if o.selection.Method() != m {
		o.intentSeq++
		o.intentBusy = false
		o.intentAmount = 0
	}
	o.selection.Select(m)
	o.lastErr = nil

	if m == d.PaymentMethodCard && o.selection.ClientSecret() == "" && !o.intentBusy {
		o.startIntentLocked(ctx)
	}
	return nil
}

func (o *Orchestrator) SetCardDetails(card d.CardDetails) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.requireStateLocked(d.CheckoutStatePaymentSelection); err != nil {
		return err
	}
	if !o.selection.SetCard(card) {
		return d.NewError(d.KindPrecondition, d.CodePaymentMethodRequired, "Select card payment first.")
	}
	return nil
}

func (o *Orchestrator) SetUPIAddress(addr string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.requireStateLocked(d.CheckoutStatePaymentSelection); err != nil {
		return err
	}
	if !o.selection.SetUPIAddress(addr) {
		return d.NewError(d.KindPrecondition, d.CodePaymentMethodRequired, "Select UPI payment first.")
	}
	return nil
}

// startIntentLocked creates the card payment intent for the current cart total.
// The result is dropped if the user left checkout or changed method meanwhile.
func (o *Orchestrator) startIntentLocked(ctx context.Context) {
	o.intentSeq++
	seq, gen := o.intentSeq, o.generation
	o.intentBusy = true

	// detached from the caller: the request that selected card returns immediately
	ctx = context.WithoutCancel(ctx)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		secret, amount, err := o.createIntent(ctx)

		o.mu.Lock()
		if gen != o.generation || seq != o.intentSeq {
			o.mu.Unlock()
			o.logger.Debug("discarding stale payment intent", "error", err)
			return
		}
		if err == nil {
			o.intentBusy = false
			o.selection.SetClientSecret(secret)
			o.intentAmount = amount
			o.mu.Unlock()
			return
		}
		if isSessionExpired(err) {
			o.mu.Unlock()
			o.expire(ctx, err)
			return
		}
		o.intentFailedLocked(ctx, err)
		o.mu.Unlock()
	}()
}

func (o *Orchestrator) createIntent(ctx context.Context) (string, float64, error) {
	callCtx, cancel := o.callCtx(ctx)
	defer cancel()

	cart, err := o.cart.GetCart(callCtx)
	if err != nil {
		return "", 0, err
	}
	if cart.IsEmpty() {
		return "", 0, errCartEmpty()
	}
	prices, err := pricing.CalculatePrices(cart.TotalPrice)
	if err != nil {
		return "", 0, err
	}
	secret, err := o.orders.CreatePaymentIntent(callCtx, prices.TotalPrice)
	if err != nil {
		return "", 0, err
	}
	return secret, prices.TotalPrice, nil
}

func (o *Orchestrator) intentFailedLocked(ctx context.Context, err error) {
	o.intentBusy = false
	o.lastErr = asDomainError(err)
	if isGatewayUnavailable(err) {
		o.disableCardLocked()
	}
	o.logger.WarnContext(ctx, "payment intent creation failed", "checkout_id", o.checkoutID, "error", err)
}

// disableCardLocked removes card payments for the rest of this process.
func (o *Orchestrator) disableCardLocked() {
	o.payments.Disable(d.PaymentMethodCard)
	if o.selection.Method() == d.PaymentMethodCard {
		o.selection.Clear()
		o.intentSeq++
		o.intentBusy = false
	}
	o.logger.Warn("card payments disabled", "checkout_id", o.checkoutID)
}

func isGatewayUnavailable(err error) bool {
	return errors.Is(err, d.ErrGateway) && d.CodeOf(err) == d.CodeGatewayUnavailable
}

func errCartEmpty() *d.Error {
	return d.NewError(d.KindPrecondition, d.CodeCartEmpty, "Your cart is empty.")
}
