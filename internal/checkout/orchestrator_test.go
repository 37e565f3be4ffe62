package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/fjod/go_cart/storefront/internal/publisher"
	"github.com/fjod/go_cart/storefront/internal/storage"
)

var completeDraft = d.ShippingDraft{
	Address: "12 MG Road",
	City:    "Bengaluru",
	State:   "KA",
	PinCode: "560001",
	PhoneNo: "9876543210",
	Country: "IN",
}

var testCard = d.CardDetails{Number: "4242424242424242", ExpMonth: "12", ExpYear: "30", CVC: "123"}

type fixture struct {
	o         *Orchestrator
	cart      *CartServiceMock
	orders    *OrderServiceMock
	session   *SessionMock
	processor *CardProcessorMock
	pub       *PublisherMock
	store     storage.Store
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		cart: &CartServiceMock{cart: &d.CartSnapshot{
			Items:      []d.CartSnapshotItem{{Product: d.CartProduct{ID: "p1", Name: "Kettle"}, Quantity: 2, Price: 500}},
			TotalPrice: 1000,
		}},
		orders:    &OrderServiceMock{secret: "pi_1_secret"},
		session:   &SessionMock{authenticated: true, token: "tok-1"},
		processor: &CardProcessorMock{result: &api.ProcessorResult{ID: "pi_1", Status: "succeeded"}},
		pub:       &PublisherMock{},
		store:     storage.NewMemoryBroker().Open(),
	}
	f.o = NewOrchestrator(f.cart, f.orders, f.session, f.store, payment.NewRegistry(f.processor), f.pub, Config{Timeout: 5 * time.Second}, nil)
	t.Cleanup(func() {
		f.o.Close()
		f.store.Close()
	})
	return f
}

// toPayment walks the flow up to payment selection with a complete draft.
func (f *fixture) toPayment(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, f.o.Begin(ctx))
	_, err := f.o.UpdateShipping(completeDraft)
	require.NoError(t, err)
	require.NoError(t, f.o.ConfirmShipping(ctx))
	require.Equal(t, d.CheckoutStatePaymentSelection, f.o.State())
}

func (f *fixture) readyCard(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, f.o.SelectPaymentMethod(ctx, d.PaymentMethodCard))
	require.NoError(t, f.o.SetCardDetails(testCard))
	require.Eventually(t, func() bool { return f.o.View().PaymentReady }, 2*time.Second, 10*time.Millisecond)
}

func TestBegin_RequiresSession(t *testing.T) {
	f := newFixture(t)
	f.session.authenticated = false

	err := f.o.Begin(context.Background())

	assert.ErrorIs(t, err, d.ErrAuthentication)
	assert.Equal(t, d.CheckoutStateIdle, f.o.State())
}

func TestBegin_PrefillsPersistedDraft(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, storage.SaveShippingDraft(context.Background(), f.store, completeDraft))

	require.NoError(t, f.o.Begin(context.Background()))

	view := f.o.View()
	assert.Equal(t, d.CheckoutStateShippingCapture, view.State)
	assert.Equal(t, completeDraft, view.Shipping)
	assert.NotEmpty(t, view.CheckoutID)
}

func TestBegin_ResumesOpenCheckout(t *testing.T) {
	f := newFixture(t)
	f.toPayment(t)
	id := f.o.View().CheckoutID

	require.NoError(t, f.o.Begin(context.Background()))

	assert.Equal(t, d.CheckoutStatePaymentSelection, f.o.State())
	assert.Equal(t, id, f.o.View().CheckoutID)
}

func TestConfirmShipping_IncompleteDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.o.Begin(ctx))

	draft := completeDraft
	draft.PhoneNo = "12345"
	errs, err := f.o.UpdateShipping(draft)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "phoneNo", errs[0].Field)

	err = f.o.ConfirmShipping(ctx)
	assert.ErrorIs(t, err, d.ErrPrecondition)
	assert.Equal(t, d.CodeShippingIncomplete, d.CodeOf(err))
	assert.Equal(t, d.CheckoutStateShippingCapture, f.o.State())

	stored, err := storage.LoadShippingDraft(ctx, f.store)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestConfirmShipping_PersistsDraftBeforeAdvancing(t *testing.T) {
	f := newFixture(t)
	f.toPayment(t)

	stored, err := storage.LoadShippingDraft(context.Background(), f.store)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, completeDraft, *stored)
}

func TestUpdateShipping_WrongState(t *testing.T) {
	f := newFixture(t)

	_, err := f.o.UpdateShipping(completeDraft)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestEditShipping(t *testing.T) {
	f := newFixture(t)
	f.toPayment(t)

	require.NoError(t, f.o.EditShipping())
	assert.Equal(t, d.CheckoutStateShippingCapture, f.o.State())
}

func TestSubmit_COD(t *testing.T) {
	f := newFixture(t)
	f.toPayment(t)
	require.NoError(t, f.o.SelectPaymentMethod(context.Background(), d.PaymentMethodCOD))

	order, err := f.o.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "order-1", order.ID)

	req := f.orders.placed()
	assert.Equal(t, d.PaymentStatusPending, req.PaymentInfo.Status)
	assert.Equal(t, d.PaymentMethodCOD, req.PaymentInfo.Method)
	assert.Equal(t, 1000.0, req.ItemsPrice)
	assert.Equal(t, 180.0, req.TaxPrice)
	assert.Equal(t, 0.0, req.ShippingPrice)
	assert.Equal(t, 1180.0, req.TotalPrice)
	assert.Equal(t, completeDraft, req.ShippingInfo)

	view := f.o.View()
	assert.Equal(t, d.CheckoutStateCompleted, view.State)
	require.NotNil(t, view.Order)
	assert.False(t, view.Submitting)

	f.o.Close()
	events := f.pub.published()
	require.Len(t, events, 1)
	assert.Equal(t, publisher.EventCheckoutCompleted, events[0].Type)
	assert.Equal(t, "order-1", events[0].OrderID)
}

func TestSubmit_UPICarriesAddress(t *testing.T) {
	f := newFixture(t)
	f.toPayment(t)
	ctx := context.Background()
	require.NoError(t, f.o.SelectPaymentMethod(ctx, d.PaymentMethodUPI))
	require.NoError(t, f.o.SetUPIAddress("asha@okbank"))

	_, err := f.o.Submit(ctx)
	require.NoError(t, err)

	req := f.orders.placed()
	assert.Equal(t, d.PaymentMethodUPI, req.PaymentInfo.Method)
	assert.Contains(t, req.PaymentInfo.ID, "asha@okbank")
}

func TestSubmit_Card(t *testing.T) {
	f := newFixture(t)
	f.toPayment(t)
	f.readyCard(t)

	intents, _ := f.orders.counts()
	assert.Equal(t, 1, intents)

	_, err := f.o.Submit(context.Background())
	require.NoError(t, err)

	req := f.orders.placed()
	assert.Equal(t, d.PaymentStatusSucceeded, req.PaymentInfo.Status)
	assert.Equal(t, "pi_1", req.PaymentInfo.ID)
}

func TestSubmit_IncompleteDraftMakesNoRequests(t *testing.T) {
	f := newFixture(t)
	f.toPayment(t)
	require.NoError(t, f.o.SelectPaymentMethod(context.Background(), d.PaymentMethodCOD))

	f.o.mu.Lock()
	f.o.draft.City = ""
	f.o.mu.Unlock()
	cartCalls := f.cart.callCount()

	_, err := f.o.Submit(context.Background())

	assert.ErrorIs(t, err, d.ErrPrecondition)
	assert.Equal(t, cartCalls, f.cart.callCount())
	_, orders := f.orders.counts()
	assert.Zero(t, orders)
	assert.Equal(t, d.CheckoutStatePaymentSelection, f.o.State())
	assert.NotEmpty(t, f.o.View().ErrorMessage)
}

func TestSubmit_WithoutMethod(t *testing.T) {
	f := newFixture(t)
	f.toPayment(t)

	_, err := f.o.Submit(context.Background())

	assert.Equal(t, d.CodePaymentMethodRequired, d.CodeOf(err))
	assert.Zero(t, f.cart.callCount())
}

func TestSubmit_FailedCardConfirmation(t *testing.T) {
	f := newFixture(t)
	f.toPayment(t)
	f.readyCard(t)
	f.processor.mu.Lock()
	f.processor.err = &api.ProcessorError{Code: api.ProcessorCodeCardDeclined, Message: "Your card was declined."}
	f.processor.mu.Unlock()

	_, err := f.o.Submit(context.Background())

	assert.ErrorIs(t, err, d.ErrGateway)
	assert.Equal(t, d.CheckoutStatePaymentSelection, f.o.State())
	_, orders := f.orders.counts()
	assert.Zero(t, orders)

	view := f.o.View()
	assert.Equal(t, d.CodeGatewayDeclined, view.ErrorCode)
	assert.Equal(t, "Your card was declined.", view.ErrorMessage)
	assert.Contains(t, view.AvailableMethods, d.PaymentMethodCard)
}

func TestSubmit_GatewayUnavailableDisablesCard(t *testing.T) {
	f := newFixture(t)
	f.toPayment(t)
	f.readyCard(t)
	f.processor.mu.Lock()
	f.processor.err = &api.ProcessorError{Code: api.ProcessorCodeAPIConnection, Err: errors.New("dial tcp")}
	f.processor.mu.Unlock()

	_, err := f.o.Submit(context.Background())

	assert.Equal(t, d.CodeGatewayUnavailable, d.CodeOf(err))
	view := f.o.View()
	assert.NotContains(t, view.AvailableMethods, d.PaymentMethodCard)
	assert.Empty(t, view.PaymentMethod)
}

func TestSubmit_TwoRapidSubmitsPlaceOneOrder(t *testing.T) {
	f := newFixture(t)
	f.toPayment(t)
	require.NoError(t, f.o.SelectPaymentMethod(context.Background(), d.PaymentMethodCOD))
	f.orders.entered = make(chan struct{})
	f.orders.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.o.Submit(context.Background())
		done <- err
	}()
	<-f.orders.entered

	_, err := f.o.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmitInFlight)
	assert.True(t, f.o.View().Submitting)

	close(f.orders.release)
	require.NoError(t, <-done)

	_, orders := f.orders.counts()
	assert.Equal(t, 1, orders)
}

func TestSubmit_EmptyCart(t *testing.T) {
	f := newFixture(t)
	f.toPayment(t)
	require.NoError(t, f.o.SelectPaymentMethod(context.Background(), d.PaymentMethodCOD))
	f.cart.mu.Lock()
	f.cart.cart = &d.CartSnapshot{}
	f.cart.mu.Unlock()

	_, err := f.o.Submit(context.Background())

	assert.Equal(t, d.CodeCartEmpty, d.CodeOf(err))
	_, orders := f.orders.counts()
	assert.Zero(t, orders)
	assert.Equal(t, d.CheckoutStatePaymentSelection, f.o.State())
}

func TestSubmit_OrderRejectedKeepsServerMessage(t *testing.T) {
	f := newFixture(t)
	f.toPayment(t)
	require.NoError(t, f.o.SelectPaymentMethod(context.Background(), d.PaymentMethodCOD))
	f.orders.orderErr = d.NewError(d.KindValidation, d.CodeMalformed, "Product is out of stock")

	_, err := f.o.Submit(context.Background())

	assert.ErrorIs(t, err, d.ErrValidation)
	assert.Equal(t, "Product is out of stock", f.o.View().ErrorMessage)
	assert.Equal(t, d.CheckoutStatePaymentSelection, f.o.State())

	f.o.Close()
	events := f.pub.published()
	require.Len(t, events, 1)
	assert.Equal(t, publisher.EventCheckoutFailed, events[0].Type)
	assert.Equal(t, d.CodeMalformed, events[0].ErrorCode)
}

func TestSubmit_SessionExpired(t *testing.T) {
	f := newFixture(t)
	f.toPayment(t)
	require.NoError(t, f.o.SelectPaymentMethod(context.Background(), d.PaymentMethodCOD))
	f.cart.mu.Lock()
	f.cart.err = d.NewError(d.KindAuthentication, d.CodeSessionExpired, "Not authorized")
	f.cart.mu.Unlock()

	_, err := f.o.Submit(context.Background())

	assert.ErrorIs(t, err, d.ErrAuthentication)
	assert.Equal(t, 1, f.session.expiredCount())
	assert.Equal(t, d.CheckoutStateIdle, f.o.State())
}

func TestSubmit_NetworkErrorIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.toPayment(t)
	require.NoError(t, f.o.SelectPaymentMethod(context.Background(), d.PaymentMethodCOD))
	f.cart.mu.Lock()
	f.cart.err = d.NetworkError(errors.New("connection reset"))
	f.cart.mu.Unlock()

	_, err := f.o.Submit(context.Background())
	assert.ErrorIs(t, err, d.ErrInfrastructure)
	assert.Equal(t, "Network error. Please check your connection and try again.", f.o.View().ErrorMessage)

	f.cart.mu.Lock()
	f.cart.err = nil
	f.cart.mu.Unlock()

	_, err = f.o.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, d.CheckoutStateCompleted, f.o.State())
}

func TestSubmit_CardTotalChanged(t *testing.T) {
	f := newFixture(t)
	f.toPayment(t)
	f.readyCard(t)
	f.cart.mu.Lock()
	f.cart.cart = &d.CartSnapshot{Items: f.cart.cart.Items, TotalPrice: 1500}
	f.cart.mu.Unlock()

	_, err := f.o.Submit(context.Background())

	assert.Equal(t, d.CodePaymentNotReady, d.CodeOf(err))
	f.processor.mu.Lock()
	assert.Zero(t, f.processor.calls)
	f.processor.mu.Unlock()

	require.Eventually(t, func() bool { return f.o.View().PaymentReady }, 2*time.Second, 10*time.Millisecond)
	f.orders.mu.Lock()
	assert.Equal(t, 1770.0, f.orders.intentAmount)
	f.orders.mu.Unlock()
}

func TestSubmit_CallerGoneAfterChargeStillPlacesOrder(t *testing.T) {
	f := newFixture(t)
	f.toPayment(t)
	f.readyCard(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.processor.mu.Lock()
	f.processor.onConfirm = cancel
	f.processor.mu.Unlock()

	order, err := f.o.Submit(ctx)

	require.NoError(t, err)
	assert.Equal(t, "order-1", order.ID)
	_, orders := f.orders.counts()
	assert.Equal(t, 1, orders)
	assert.Equal(t, d.CheckoutStateCompleted, f.o.State())
}

func TestSubmit_OrderFailureAfterChargeRetriesWithoutCharging(t *testing.T) {
	f := newFixture(t)
	f.toPayment(t)
	f.readyCard(t)
	f.orders.mu.Lock()
	f.orders.orderErr = d.NetworkError(errors.New("connection reset"))
	f.orders.mu.Unlock()

	_, err := f.o.Submit(context.Background())

	assert.ErrorIs(t, err, d.ErrInfrastructure)
	assert.Equal(t, d.CheckoutStatePaymentSelection, f.o.State())
	view := f.o.View()
	assert.True(t, view.PaymentCaptured)
	assert.True(t, view.PaymentReady)
	assert.Equal(t, 1, f.processor.callCount())

	err = f.o.SelectPaymentMethod(context.Background(), d.PaymentMethodCOD)
	assert.Equal(t, d.CodePaymentCaptured, d.CodeOf(err))

	f.orders.mu.Lock()
	f.orders.orderErr = nil
	f.orders.mu.Unlock()

	order, err := f.o.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "order-1", order.ID)
	assert.Equal(t, 1, f.processor.callCount(), "payment intent must not be confirmed twice")
	_, orders := f.orders.counts()
	assert.Equal(t, 2, orders)

	req := f.orders.placed()
	assert.Equal(t, "pi_1", req.PaymentInfo.ID)
	assert.Equal(t, d.PaymentStatusSucceeded, req.PaymentInfo.Status)
	assert.Equal(t, d.CheckoutStateCompleted, f.o.State())
	assert.False(t, f.o.View().PaymentCaptured)
}

func TestSubmit_AccessDeniedIsInline(t *testing.T) {
	denied := d.NewError(d.KindAuthorization, d.CodeAccessDenied, "You do not have permission to do that.")
	tests := []struct {
		name  string
		setup func(f *fixture)
	}{
		{"cart", func(f *fixture) {
			f.cart.mu.Lock()
			f.cart.err = denied
			f.cart.mu.Unlock()
		}},
		{"order", func(f *fixture) {
			f.orders.mu.Lock()
			f.orders.orderErr = denied
			f.orders.mu.Unlock()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.toPayment(t)
			require.NoError(t, f.o.SelectPaymentMethod(context.Background(), d.PaymentMethodCOD))
			tt.setup(f)

			_, err := f.o.Submit(context.Background())

			assert.ErrorIs(t, err, d.ErrAuthorization)
			assert.Zero(t, f.session.expiredCount())
			assert.True(t, f.session.IsAuthenticated())
			assert.Equal(t, d.CheckoutStatePaymentSelection, f.o.State())
			view := f.o.View()
			assert.Equal(t, d.CodeAccessDenied, view.ErrorCode)
			assert.Equal(t, "You do not have permission to do that.", view.ErrorMessage)
		})
	}
}

func TestSelectPaymentMethod_AccessDeniedIntentIsInline(t *testing.T) {
	f := newFixture(t)
	f.toPayment(t)
	f.orders.mu.Lock()
	f.orders.intentErr = d.NewError(d.KindAuthorization, d.CodeAccessDenied, "You do not have permission to do that.")
	f.orders.mu.Unlock()

	require.NoError(t, f.o.SelectPaymentMethod(context.Background(), d.PaymentMethodCard))

	require.Eventually(t, func() bool {
		return f.o.View().ErrorCode == d.CodeAccessDenied
	}, 2*time.Second, 10*time.Millisecond)
	view := f.o.View()
	assert.Equal(t, d.CheckoutStatePaymentSelection, view.State)
	assert.Contains(t, view.AvailableMethods, d.PaymentMethodCard)
	assert.Zero(t, f.session.expiredCount())
}

func TestAbandon_DuringProcessingStillPlacesOrder(t *testing.T) {
	f := newFixture(t)
	f.toPayment(t)
	require.NoError(t, f.o.SelectPaymentMethod(context.Background(), d.PaymentMethodCOD))
	f.orders.entered = make(chan struct{})
	f.orders.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.o.Submit(context.Background())
		done <- err
	}()
	<-f.orders.entered

	f.o.Abandon()
	assert.Equal(t, d.CheckoutStateIdle, f.o.State())

	close(f.orders.release)
	require.NoError(t, <-done)

	view := f.o.View()
	assert.Equal(t, d.CheckoutStateIdle, view.State)
	assert.Nil(t, view.Order)
	_, orders := f.orders.counts()
	assert.Equal(t, 1, orders)
}

func TestSelectPaymentMethod_IntentFailureDisablesCard(t *testing.T) {
	f := newFixture(t)
	f.toPayment(t)
	f.orders.intentErr = d.NewError(d.KindGateway, d.CodeGatewayUnavailable, "Card payments are currently unavailable.")

	require.NoError(t, f.o.SelectPaymentMethod(context.Background(), d.PaymentMethodCard))

	require.Eventually(t, func() bool {
		return !f.o.View().IntentPending
	}, 2*time.Second, 10*time.Millisecond)
	view := f.o.View()
	assert.NotContains(t, view.AvailableMethods, d.PaymentMethodCard)
	assert.Equal(t, d.CodeGatewayUnavailable, view.ErrorCode)

	err := f.o.SelectPaymentMethod(context.Background(), d.PaymentMethodCard)
	assert.Equal(t, d.CodePaymentMethodRequired, d.CodeOf(err))
}

func TestSelectPaymentMethod_SwitchDiscardsCardFields(t *testing.T) {
	f := newFixture(t)
	f.toPayment(t)
	f.readyCard(t)
	ctx := context.Background()

	require.NoError(t, f.o.SelectPaymentMethod(ctx, d.PaymentMethodUPI))
	assert.Error(t, f.o.SetCardDetails(testCard))

	require.NoError(t, f.o.SelectPaymentMethod(ctx, d.PaymentMethodCard))
	assert.False(t, f.o.View().PaymentReady)
}

func TestSelectPaymentMethod_WrongState(t *testing.T) {
	f := newFixture(t)

	err := f.o.SelectPaymentMethod(context.Background(), d.PaymentMethodCOD)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestSummary(t *testing.T) {
	f := newFixture(t)

	s, err := f.o.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 180.0, s.Prices.TaxPrice)
	assert.Equal(t, 1180.0, s.Prices.TotalPrice)

	_, err = f.o.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.cart.callCount(), "summary must refetch the cart every time")
}

func TestSummary_SessionExpired(t *testing.T) {
	f := newFixture(t)
	f.toPayment(t)
	f.cart.mu.Lock()
	f.cart.err = d.NewError(d.KindAuthentication, d.CodeSessionExpired, "Your session has expired. Please log in again.")
	f.cart.mu.Unlock()

	_, err := f.o.Summary(context.Background())

	assert.ErrorIs(t, err, d.ErrAuthentication)
	assert.Equal(t, 1, f.session.expiredCount())
	assert.Equal(t, d.CheckoutStateIdle, f.o.State())
}

func TestSummary_AccessDeniedKeepsSession(t *testing.T) {
	f := newFixture(t)
	f.toPayment(t)
	f.cart.mu.Lock()
	f.cart.err = d.NewError(d.KindAuthorization, d.CodeAccessDenied, "You do not have permission to do that.")
	f.cart.mu.Unlock()

	_, err := f.o.Summary(context.Background())

	assert.ErrorIs(t, err, d.ErrAuthorization)
	assert.Zero(t, f.session.expiredCount())
	assert.Equal(t, d.CheckoutStatePaymentSelection, f.o.State())
}

func TestBegin_AfterCompletionStartsNewCheckout(t *testing.T) {
	f := newFixture(t)
	f.toPayment(t)
	require.NoError(t, f.o.SelectPaymentMethod(context.Background(), d.PaymentMethodCOD))
	_, err := f.o.Submit(context.Background())
	require.NoError(t, err)
	first := f.o.View().CheckoutID

	require.NoError(t, f.o.Begin(context.Background()))

	view := f.o.View()
	assert.Equal(t, d.CheckoutStateShippingCapture, view.State)
	assert.NotEqual(t, first, view.CheckoutID)
	assert.Nil(t, view.Order)
	assert.Equal(t, completeDraft, view.Shipping, "draft survives a completed order")
}
