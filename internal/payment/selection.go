package payment

import (
	d "github.com/fjod/go_cart/storefront/domain"
)

// Selection is the payment method the user picked plus the fields entered for it.
// Picking another method discards everything entered for the previous one.
type Selection struct {
	method       d.PaymentMethod
	card         d.CardDetails
	upiAddress   string
	clientSecret string
}

func (s *Selection) Method() d.PaymentMethod {
	return s.method
}

// Select switches the method. Reselecting the current method keeps its fields.
func (s *Selection) Select(m d.PaymentMethod) {
	if s.method == m {
		return
	}
	*s = Selection{method: m}
}

func (s *Selection) Clear() {
	*s = Selection{}
}

// SetCard is ignored unless card is the selected method.
func (s *Selection) SetCard(card d.CardDetails) bool {
	if s.method != d.PaymentMethodCard {
		return false
	}
	s.card = card
	return true
}

func (s *Selection) SetUPIAddress(addr string) bool {
	if s.method != d.PaymentMethodUPI {
		return false
	}
	s.upiAddress = addr
	return true
}

func (s *Selection) SetClientSecret(secret string) bool {
	if s.method != d.PaymentMethodCard {
		return false
	}
	s.clientSecret = secret
	return true
}

func (s *Selection) ClientSecret() string {
	return s.clientSecret
}

func (s *Selection) UPIAddress() string {
	return s.upiAddress
}

func (s *Selection) HasCard() bool {
	return s.card.IsComplete()
}

// Ready reports whether Submit could be attempted with what was entered so far.
func (s *Selection) Ready() bool {
	switch s.method {
	case d.PaymentMethodCard:
		return s.clientSecret != "" && s.card.IsComplete()
	case d.PaymentMethodCOD, d.PaymentMethodUPI:
		return true
	}
	return false
}

// Request builds the adapter input for amount.
func (s *Selection) Request(amount float64) Request {
	return Request{
		Amount:       amount,
		ClientSecret: s.clientSecret,
		Card:         s.card,
		UPIAddress:   s.upiAddress,
	}
}
