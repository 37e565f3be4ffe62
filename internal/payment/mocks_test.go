package payment

import (
	"context"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/api"
)

type CardProcessorMock struct {
	result *api.ProcessorResult
	err    error

	calls  int
	secret string
	card   d.CardDetails
}

func (m *CardProcessorMock) Confirm(_ context.Context, clientSecret string, card d.CardDetails) (*api.ProcessorResult, error) {
	m.calls++
	m.secret = clientSecret
	m.card = card
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}
