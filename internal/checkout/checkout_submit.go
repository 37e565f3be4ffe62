package checkout

import (
	"context"
	"fmt"
	"math"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/fjod/go_cart/storefront/internal/pricing"
	"github.com/fjod/go_cart/storefront/internal/publisher"
)

// submission is everything Submit captured under the lock before going remote.
type submission struct {
	generation uint64
	checkoutID string
	draft      d.ShippingDraft
	adapter    payment.Adapter
	selection  payment.Selection
	intentAmt  float64
	charged    *d.PaymentAttempt
	chargedAmt float64
}

// Submit runs the payment and places the order. Only one submission may run at a
// time; a second call while one is in flight fails with ErrSubmitInFlight without
// any side effect.
func (o *Orchestrator) Submit(ctx context.Context) (*d.Order, error) {
	sub, err := o.beginSubmit()
	if err != nil {
		return nil, err
	}

	// local checks first: none of them touch the network
	if err := o.precheck(sub); err != nil {
		return nil, o.fail(ctx, sub, err, 0)
	}

	callCtx, cancel := o.callCtx(ctx)
	defer cancel()

	cart, err := o.cart.GetCart(callCtx)
	if err != nil {
		return nil, o.fail(ctx, sub, err, 0)
	}
	if cart.IsEmpty() {
		return nil, o.fail(ctx, sub, errCartEmpty(), 0)
	}
	prices, err := pricing.CalculatePrices(cart.TotalPrice)
	if err != nil {
		return nil, o.fail(ctx, sub, err, 0)
	}

	attempt := sub.charged
	if attempt != nil {
		if !sameAmount(sub.chargedAmt, prices.TotalPrice) {
			o.logger.ErrorContext(ctx, "cart total changed after card was charged",
				"checkout_id", sub.checkoutID, "payment_reference", attempt.Reference,
				"charged", sub.chargedAmt, "total", prices.TotalPrice)
			return nil, o.fail(ctx, sub, d.NewError(d.KindPrecondition, d.CodePaymentCaptured,
				"Your cart changed after your card was charged. Please restore it to place your order."), prices.TotalPrice)
		}
	} else {
		if sub.adapter.Method() == d.PaymentMethodCard && !sameAmount(sub.intentAmt, prices.TotalPrice) {
			o.refreshIntent(ctx, sub.generation)
			return nil, o.fail(ctx, sub, d.NewError(d.KindPrecondition, d.CodePaymentNotReady,
				"Your order total changed. Please review it and submit again."), prices.TotalPrice)
		}
		if !o.stillCurrent(sub.generation) {
			o.logger.InfoContext(ctx, "checkout left before payment, not charging", "checkout_id", sub.checkoutID)
			return nil, ErrIllegalTransition
		}

		// From here on the payment may be taken, so the pipeline runs to the end even
		// if the user leaves; only the state update is skipped.
		attempt, err = sub.adapter.Submit(callCtx, sub.selection.Request(prices.TotalPrice))
		if err != nil {
			return nil, o.fail(ctx, sub, err, prices.TotalPrice)
		}
		if attempt.Method == d.PaymentMethodCard && attempt.Status != d.PaymentStatusSucceeded {
			return nil, o.fail(ctx, sub, d.NewError(d.KindGateway, d.CodeGatewayDeclined, "Your card payment did not go through."), prices.TotalPrice)
		}
	}

	// detached from the caller: a disconnect or request deadline must not leave a
	// payment without its order
	orderCtx, cancelOrder := o.callCtx(context.WithoutCancel(ctx))
	defer cancelOrder()

	order, err := o.orders.PlaceOrder(orderCtx, d.PlaceOrderRequest{
		ShippingInfo: sub.draft,
		PaymentInfo: d.PaymentInfo{
			ID:     attempt.Reference,
			Status: attempt.Status,
			Method: attempt.Method,
		},
		ItemsPrice:    prices.ItemsPrice,
		TaxPrice:      prices.TaxPrice,
		ShippingPrice: prices.ShippingPrice,
		TotalPrice:    prices.TotalPrice,
	})
	if err != nil {
		if attempt.Status == d.PaymentStatusSucceeded {
			o.logger.ErrorContext(ctx, "card charged but order was not placed",
				"checkout_id", sub.checkoutID, "payment_reference", attempt.Reference, "error", err)
			o.keepCharge(sub, attempt, prices.TotalPrice)
		}
		return nil, o.fail(ctx, sub, err, prices.TotalPrice)
	}

	o.complete(ctx, sub, attempt, order, prices.TotalPrice)
	return order, nil
}

func (o *Orchestrator) beginSubmit() (*submission, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.submitting {
		return nil, ErrSubmitInFlight
	}
	if err := o.transitionLocked(d.CheckoutStatePaymentProcessing); err != nil {
		return nil, err
	}
	o.submitting = true
	o.lastErr = nil

	sub := &submission{
		generation: o.generation,
		checkoutID: o.checkoutID,
		draft:      o.draft,
		selection:  o.selection,
		intentAmt:  o.intentAmount,
		charged:    o.charged,
		chargedAmt: o.chargedAmount,
	}
	if a, ok := o.payments.Get(o.selection.Method()); ok {
		sub.adapter = a
	}
	return sub, nil
}

func (o *Orchestrator) precheck(sub *submission) error {
	if !o.session.IsAuthenticated() || o.session.Token() == "" {
		return errNotAuthenticated()
	}
	if errs := sub.draft.Validate(); len(errs) > 0 {
		return shippingIncomplete(errs)
	}
	if sub.charged != nil {
		return nil
	}
	if sub.adapter == nil {
		return d.NewError(d.KindPrecondition, d.CodePaymentMethodRequired, "Please select a payment method.")
	}
	if !sub.selection.Ready() {
		msg := "Please complete your payment details."
		if sub.adapter.Method() == d.PaymentMethodCard && sub.selection.ClientSecret() == "" {
			msg = "Card payment is still being prepared. Please wait a moment."
		}
		return d.NewError(d.KindPrecondition, d.CodePaymentNotReady, msg)
	}
	return nil
}

// fail records err for the user and hands control back to payment selection.
// A 401 instead drops the session and resets checkout.
func (o *Orchestrator) fail(ctx context.Context, sub *submission, err error, total float64) error {
	derr := asDomainError(err)
	o.publish(o.event(publisher.EventCheckoutFailed, sub, nil, nil, total, derr.Code))

	if isSessionExpired(derr) {
		o.mu.Lock()
		current := sub.generation == o.generation
		o.mu.Unlock()
		if current {
			o.expire(ctx, derr)
		}
		return derr
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if sub.generation != o.generation {
		o.logger.InfoContext(ctx, "discarding failure of abandoned checkout", "checkout_id", sub.checkoutID, "error", err)
		return derr
	}

	o.submitting = false
	o.lastErr = derr
	if isGatewayUnavailable(derr) {
		o.disableCardLocked()
	}
	if terr := o.transitionLocked(d.CheckoutStateFailed); terr == nil {
		_ = o.transitionLocked(d.CheckoutStatePaymentSelection)
	}
	o.logger.WarnContext(ctx, "checkout failed", "checkout_id", sub.checkoutID, "code", derr.Code, "error", err)
	return derr
}

func (o *Orchestrator) complete(ctx context.Context, sub *submission, attempt *d.PaymentAttempt, order *d.Order, total float64) {
	o.publish(o.event(publisher.EventCheckoutCompleted, sub, attempt, order, total, ""))

	o.mu.Lock()
	defer o.mu.Unlock()
	if sub.generation != o.generation {
		o.logger.WarnContext(ctx, "order placed after checkout was left",
			"checkout_id", sub.checkoutID, "order_id", order.ID)
		return
	}
	o.submitting = false
	o.order = order
	o.charged = nil
	o.chargedAmount = 0
	_ = o.transitionLocked(d.CheckoutStateCompleted)
	o.logger.InfoContext(ctx, "order placed", "checkout_id", sub.checkoutID, "order_id", order.ID, "method", attempt.Method)
}

// refreshIntent replaces a card intent created for an outdated total.
func (o *Orchestrator) refreshIntent(ctx context.Context, gen uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation || o.selection.Method() != d.PaymentMethodCard {
		return
	}
	o.selection.SetClientSecret("")
	o.startIntentLocked(ctx)
}

// keepCharge remembers a successful card charge so a retry places the order
// without confirming the payment intent a second time.
func (o *Orchestrator) keepCharge(sub *submission, attempt *d.PaymentAttempt, total float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if sub.generation != o.generation {
		return
	}
	o.charged = attempt
	o.chargedAmount = total
	o.selection.SetClientSecret("")
}

func (o *Orchestrator) stillCurrent(gen uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return gen == o.generation
}

func (o *Orchestrator) event(typ string, sub *submission, attempt *d.PaymentAttempt, order *d.Order, total float64, code string) publisher.Event {
	ev := publisher.Event{
		Type:       typ,
		CheckoutID: sub.checkoutID,
		UserID:     o.userID(),
		TotalPrice: total,
		ErrorCode:  code,
		OccurredAt: o.now().UTC(),
	}
	if sub.adapter != nil {
		ev.Method = sub.adapter.Method()
	}
	if attempt != nil {
		ev.Method = attempt.Method
		ev.PaymentStatus = attempt.Status
	}
	if order != nil {
		ev.OrderID = order.ID
	}
	return ev
}

func sameAmount(a, b float64) bool {
	return math.Abs(a-b) < 0.005
}

// Summary returns a freshly priced cart for the order summary. It never changes
// checkout state.
func (o *Orchestrator) Summary(ctx context.Context) (*Summary, error) {
	if !o.session.IsAuthenticated() {
		return nil, errNotAuthenticated()
	}
	callCtx, cancel := o.callCtx(ctx)
	defer cancel()

	cart, err := o.cart.GetCart(callCtx)
	if err != nil {
		if isSessionExpired(err) {
			o.expire(ctx, err)
		}
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, errCartEmpty()
	}
	prices, err := pricing.CalculatePrices(cart.TotalPrice)
	if err != nil {
		return nil, fmt.Errorf("failed to price cart: %w", err)
	}
	return &Summary{Cart: cart, Prices: prices}, nil
}
