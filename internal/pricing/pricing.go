package pricing

import (
	"fmt"
	"math"

	d "github.com/fjod/go_cart/storefront/domain"
)

const (
	TaxRate       = 0.18
	ShippingPrice = 0.0 // free shipping for every order
)

// roundingNudge absorbs binary representation error so that values such as 1.005
// round half-up the way they read in decimal.
const roundingNudge = 1e-9

// CalculatePrices derives the order price breakdown from the cart subtotal.
// It is pure; a non-finite or negative subtotal yields a precondition error and no
// breakdown.
func CalculatePrices(itemsPrice float64) (d.PriceBreakdown, error) {
	if math.IsNaN(itemsPrice) || math.IsInf(itemsPrice, 0) {
		return d.PriceBreakdown{}, d.WrapError(d.KindPrecondition, d.CodeNonFinitePrice,
			"Unable to calculate order total. Please refresh your cart.",
			fmt.Errorf("items price is not finite: %v", itemsPrice))
	}
	if itemsPrice < 0 {
		return d.PriceBreakdown{}, d.WrapError(d.KindPrecondition, d.CodeNonFinitePrice,
			"Unable to calculate order total. Please refresh your cart.",
			fmt.Errorf("items price is negative: %v", itemsPrice))
	}

	tax := round2(itemsPrice * TaxRate)
	return d.PriceBreakdown{
		ItemsPrice:    itemsPrice,
		TaxPrice:      tax,
		ShippingPrice: ShippingPrice,
		TotalPrice:    round2(itemsPrice + tax + ShippingPrice),
	}, nil
}

// round2 rounds half-up to two decimal places. Inputs are never negative here.
func round2(v float64) float64 {
	return math.Floor(v*100+0.5+roundingNudge) / 100
}
