package payment

import (
	"context"
	"errors"
	"strings"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/api"
)

// CardProcessor confirms a payment intent with the card fields.
type CardProcessor interface {
	Confirm(ctx context.Context, clientSecret string, card d.CardDetails) (*api.ProcessorResult, error)
}

type CardGateway struct {
	processor CardProcessor
}

func NewCardGateway(processor CardProcessor) *CardGateway {
	return &CardGateway{processor: processor}
}

func (g *CardGateway) Method() d.PaymentMethod {
	return d.PaymentMethodCard
}

func (g *CardGateway) Submit(ctx context.Context, req Request) (*d.PaymentAttempt, error) {
	if strings.TrimSpace(req.ClientSecret) == "" {
		return nil, d.NewError(d.KindPrecondition, d.CodePaymentNotReady, "Card payment is still being prepared. Please wait a moment.")
	}
	if !req.Card.IsComplete() {
		return nil, d.NewError(d.KindPrecondition, d.CodePaymentNotReady, "Please enter your complete card details.")
	}

	res, err := g.processor.Confirm(ctx, req.ClientSecret, req.Card)
	if err != nil {
		return nil, mapProcessorError(err)
	}
	return &d.PaymentAttempt{
		Method:    d.PaymentMethodCard,
		Reference: res.ID,
		Status:    d.PaymentStatusSucceeded,
	}, nil
}

func mapProcessorError(err error) error {
	var pe *api.ProcessorError
	if !errors.As(err, &pe) {
		return d.WrapError(d.KindGateway, d.CodeGatewayUnavailable, "Card payments are currently unavailable.", err)
	}

	switch pe.Code {
	case api.ProcessorCodeCardDeclined, api.ProcessorCodeInsufficientFunds,
		api.ProcessorCodeExpiredCard, api.ProcessorCodeIncorrectCVC:
		msg := pe.Message
		if msg == "" {
			msg = "Your card was declined."
		}
		return d.WrapError(d.KindGateway, d.CodeGatewayDeclined, msg, err)
	case api.ProcessorCodeAuthenticationRequired:
		return d.WrapError(d.KindGateway, d.CodeAuthenticationRequired,
			"Your bank requires additional authentication for this payment.", err)
	default:
		return d.WrapError(d.KindGateway, d.CodeGatewayUnavailable, "Card payments are currently unavailable.", err)
	}
}
