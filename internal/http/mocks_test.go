package http

import (
	"context"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/session"
)

// --- Mocks ---

type SessionServiceMock struct {
	view      session.View
	err       error
	logoutHit bool
	creds     d.Credentials
}

func (m *SessionServiceMock) Snapshot() session.View {
	return m.view
}

func (m *SessionServiceMock) Login(_ context.Context, creds d.Credentials) (*d.User, error) {
	m.creds = creds
	if m.err != nil {
		return nil, m.err
	}
	m.view = session.View{User: &d.User{ID: "u1", Email: creds.Email}, Authenticated: true}
	return m.view.User, nil
}

func (m *SessionServiceMock) Register(_ context.Context, profile d.RegistrationProfile) (*d.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.view = session.View{User: &d.User{ID: "u2", Name: profile.Name}, Authenticated: true}
	return m.view.User, nil
}

func (m *SessionServiceMock) Logout(_ context.Context) {
	m.logoutHit = true
	m.view = session.View{}
}

type CheckoutServiceMock struct {
	view    checkout.View
	err     error
	order   *d.Order
	summary *checkout.Summary

	draft     d.ShippingDraft
	method    d.PaymentMethod
	card      *d.CardDetails
	upi       *string
	abandoned bool
}

func (m *CheckoutServiceMock) View() checkout.View { return m.view }

func (m *CheckoutServiceMock) Begin(context.Context) error { return m.err }

func (m *CheckoutServiceMock) UpdateShipping(draft d.ShippingDraft) ([]d.FieldError, error) {
	m.draft = draft
	return draft.Validate(), m.err
}

func (m *CheckoutServiceMock) ConfirmShipping(context.Context) error { return m.err }

func (m *CheckoutServiceMock) EditShipping() error { return m.err }

func (m *CheckoutServiceMock) SelectPaymentMethod(_ context.Context, method d.PaymentMethod) error {
	m.method = method
	return m.err
}

func (m *CheckoutServiceMock) SetCardDetails(card d.CardDetails) error {
	m.card = &card
	return m.err
}

func (m *CheckoutServiceMock) SetUPIAddress(addr string) error {
	m.upi = &addr
	return m.err
}

func (m *CheckoutServiceMock) Summary(context.Context) (*checkout.Summary, error) {
	return m.summary, m.err
}

func (m *CheckoutServiceMock) Submit(context.Context) (*d.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

func (m *CheckoutServiceMock) Abandon() { m.abandoned = true }

type OrderLookupMock struct {
	order *d.Order
	err   error
	id    string
}

func (m *OrderLookupMock) GetOrder(_ context.Context, id string) (*d.Order, error) {
	m.id = id
	return m.order, m.err
}
