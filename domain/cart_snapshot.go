package domain

import "time"

type CartProduct struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

type CartSnapshotItem struct {
	Product  CartProduct `json:"product"`
	Quantity int         `json:"quantity"`
	Price    float64     `json:"price"`
}

// CartSnapshot is the server-confirmed cart at FetchedAt. It is never reused across
// checkout steps; callers fetch a new one before pricing.
type CartSnapshot struct {
	Items      []CartSnapshotItem `json:"items"`
	TotalPrice float64            `json:"totalPrice"`
	FetchedAt  time.Time          `json:"-"`
}

func (c *CartSnapshot) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}
