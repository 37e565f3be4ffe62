package api

import (
	"context"
	"net/http"
	"time"

	d "github.com/fjod/go_cart/storefront/domain"
)

type CartClient struct {
	c   *Client
	now func() time.Time
}

func NewCartClient(c *Client) *CartClient {
	return &CartClient{c: c, now: time.Now}
}

type cartResponse struct {
	Cart *d.CartSnapshot `json:"cart"`
}

// GetCart always goes to the server; snapshots are never served from a cache.
func (cc *CartClient) GetCart(ctx context.Context) (*d.CartSnapshot, error) {
	var resp cartResponse
	if err := cc.c.do(ctx, http.MethodGet, "/api/v1/cart", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Cart == nil {
		return nil, d.WrapError(d.KindInfrastructure, d.CodeServerError, "", errEmptyCart)
	}
	resp.Cart.FetchedAt = cc.now()
	return resp.Cart, nil
}
