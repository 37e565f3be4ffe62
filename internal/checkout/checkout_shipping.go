package checkout

import (
	"context"
	"fmt"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/storage"
)

// UpdateShipping replaces the draft being edited and returns what is still missing.
func (o *Orchestrator) UpdateShipping(draft d.ShippingDraft) ([]d.FieldError, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.requireStateLocked(d.CheckoutStateShippingCapture); err != nil {
		return nil, err
	}
	o.draft = draft
	o.fieldErrors = draft.Validate()
	return append([]d.FieldError(nil), o.fieldErrors...), nil
}

// ConfirmShipping persists a complete draft and moves on to payment selection.
// The draft is stored before the state changes.
func (o *Orchestrator) ConfirmShipping(ctx context.Context) error {
	o.mu.Lock()
	if err := o.requireStateLocked(d.CheckoutStateShippingCapture); err != nil {
		o.mu.Unlock()
		return err
	}
	if errs := o.draft.Validate(); len(errs) > 0 {
		o.fieldErrors = errs
		o.mu.Unlock()
		return shippingIncomplete(errs)
	}
	draft := o.draft
	gen := o.generation
	o.mu.Unlock()

	if err := storage.SaveShippingDraft(ctx, o.store, draft); err != nil {
		return fmt.Errorf("failed to persist shipping draft: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation || o.state != d.CheckoutStateShippingCapture {
		return ErrIllegalTransition
	}
	o.fieldErrors = nil
	return o.transitionLocked(d.CheckoutStatePaymentSelection)
}

// EditShipping goes back from payment selection to the shipping form.
func (o *Orchestrator) EditShipping() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.submitting {
		return ErrSubmitInFlight
	}
	return o.transitionLocked(d.CheckoutStateShippingCapture)
}

func shippingIncomplete(errs []d.FieldError) *d.Error {
	msg := "Please complete your shipping details."
	if len(errs) > 0 {
		msg = fmt.Sprintf("Please complete your shipping details (%s).", errs[0])
	}
	return d.NewError(d.KindPrecondition, d.CodeShippingIncomplete, msg)
}
