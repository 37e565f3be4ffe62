package domain

import "time"

type PaymentInfo struct {
	ID     string        `json:"id"`
	Status PaymentStatus `json:"status"`
	Method PaymentMethod `json:"method"`
}

// PlaceOrderRequest is the body sent to the order service once payment reached a
// state that allows order creation.
type PlaceOrderRequest struct {
	ShippingInfo  ShippingDraft `json:"shippingInfo"`
	PaymentInfo   PaymentInfo   `json:"paymentInfo"`
	ItemsPrice    float64       `json:"itemsPrice"`
	TaxPrice      float64       `json:"taxPrice"`
	ShippingPrice float64       `json:"shippingPrice"`
	TotalPrice    float64       `json:"totalPrice"`
}

type Order struct {
	ID          string    `json:"id"`
	OrderStatus string    `json:"orderStatus,omitempty"`
	TotalPrice  float64   `json:"totalPrice"`
	CreatedAt   time.Time `json:"createdAt"`
}
