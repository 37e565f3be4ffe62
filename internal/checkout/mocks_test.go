package checkout

import (
	"context"
	"sync"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/publisher"
)

type CartServiceMock struct {
	mu    sync.Mutex
	cart  *d.CartSnapshot
	err   error
	calls int
}

func (m *CartServiceMock) GetCart(_ context.Context) (*d.CartSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	c := *m.cart
	return &c, nil
}

func (m *CartServiceMock) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type OrderServiceMock struct {
	mu        sync.Mutex
	secret    string
	intentErr error
	orderErr  error
	// entered is signalled and release awaited by PlaceOrder when set
	entered chan struct{}
	release chan struct{}

	intentCalls  int
	intentAmount float64
	orderCalls   int
	lastOrder    d.PlaceOrderRequest
}

func (m *OrderServiceMock) CreatePaymentIntent(_ context.Context, amount float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intentCalls++
	m.intentAmount = amount
	if m.intentErr != nil {
		return "", m.intentErr
	}
	return m.secret, nil
}

func (m *OrderServiceMock) PlaceOrder(ctx context.Context, req d.PlaceOrderRequest) (*d.Order, error) {
	m.mu.Lock()
	m.orderCalls++
	m.lastOrder = req
	entered, release := m.entered, m.release
	err := m.orderErr
	m.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		<-release
	}
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, d.NetworkError(ctx.Err())
	}
	return &d.Order{ID: "order-1", TotalPrice: req.TotalPrice}, nil
}

func (m *OrderServiceMock) counts() (intents, orders int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.intentCalls, m.orderCalls
}

func (m *OrderServiceMock) placed() d.PlaceOrderRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOrder
}

type SessionMock struct {
	mu            sync.Mutex
	authenticated bool
	token         string
	expired       int
}

func (m *SessionMock) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticated
}

func (m *SessionMock) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *SessionMock) User() *d.User {
	return &d.User{ID: "u1"}
}

func (m *SessionMock) Expire(_ context.Context, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authenticated = false
	m.token = ""
	m.expired++
}

func (m *SessionMock) expiredCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expired
}

type CardProcessorMock struct {
	mu     sync.Mutex
	result *api.ProcessorResult
	err    error
	calls  int
	// onConfirm runs after the charge is accepted, e.g. to cancel the caller
	onConfirm func()
}

func (m *CardProcessorMock) Confirm(_ context.Context, _ string, _ d.CardDetails) (*api.ProcessorResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.onConfirm != nil {
		m.onConfirm()
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type PublisherMock struct {
	mu     sync.Mutex
	events []publisher.Event
}

func (m *CardProcessorMock) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *PublisherMock) Publish(_ context.Context, ev publisher.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *PublisherMock) Close() error { return nil }

func (m *PublisherMock) published() []publisher.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]publisher.Event(nil), m.events...)
}
