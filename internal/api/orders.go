package api

import (
	"context"
	"net/http"
	"net/url"

	d "github.com/fjod/go_cart/storefront/domain"
)

type OrderClient struct {
	c *Client
}

func NewOrderClient(c *Client) *OrderClient {
	return &OrderClient{c: c}
}

type paymentIntentRequest struct {
	Amount float64 `json:"amount"`
}

type paymentIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

type orderResponse struct {
	Order *d.Order `json:"order"`
}

// CreatePaymentIntent asks the order service for a card payment intent and returns
// its client secret.
func (o *OrderClient) CreatePaymentIntent(ctx context.Context, amount float64) (string, error) {
	var resp paymentIntentResponse
	if err := o.c.do(ctx, http.MethodPost, "/api/v1/orders/payment-intent", paymentIntentRequest{Amount: amount}, &resp); err != nil {
		return "", err
	}
	if resp.ClientSecret == "" {
		return "", d.NewError(d.KindGateway, d.CodeGatewayUnavailable, "Card payments are currently unavailable.")
	}
	return resp.ClientSecret, nil
}

func (o *OrderClient) PlaceOrder(ctx context.Context, req d.PlaceOrderRequest) (*d.Order, error) {
	var resp orderResponse
	if err := o.c.do(ctx, http.MethodPost, "/api/v1/orders", req, &resp); err != nil {
		return nil, err
	}
	if resp.Order == nil {
		return nil, d.WrapError(d.KindInfrastructure, d.CodeServerError, "", errEmptyOrder)
	}
	return resp.Order, nil
}

func (o *OrderClient) GetOrder(ctx context.Context, id string) (*d.Order, error) {
	var resp orderResponse
	if err := o.c.do(ctx, http.MethodGet, "/api/v1/orders/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Order == nil {
		return nil, d.WrapError(d.KindInfrastructure, d.CodeServerError, "", errEmptyOrder)
	}
	return resp.Order, nil
}
