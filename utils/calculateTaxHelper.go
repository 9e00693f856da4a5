package utils

import (
	"github.com/shopspring/decimal"
)

// VAT rate baked into consumer prices. Both the selling price and the cost
// are tax-inclusive at 5%.
var vatDivisor = decimal.NewFromFloat(1.05)

// FloorToCent truncates toward negative infinity at 2 decimal places.
func FloorToCent(d decimal.Decimal) decimal.Decimal {
	return d.RoundFloor(2)
}

// CeilToCent rounds toward positive infinity at 2 decimal places.
func CeilToCent(d decimal.Decimal) decimal.Decimal {
	return d.RoundCeil(2)
}

// CalculateOrderTax returns the net VAT liability of one order.
//
// The output leg is the tax embedded in the tax-inclusive selling price; the
// input credit is the tax embedded in the supplier payable (cost minus the
// supplier service fee, which is invoiced separately). Rounding is biased
// against the platform on both legs: the sales net amount is floored (tax up)
// and the cost net amount is ceiled (credit down), so the liability never
// comes out understated by rounding.
func CalculateOrderTax(sellingPrice, cost, supplierFee decimal.Decimal) (decimal.Decimal, error) {
	if sellingPrice.IsNegative() {
		return decimal.Zero, NewValidationError("selling_price", "must not be negative")
	}
	if cost.IsNegative() {
		return decimal.Zero, NewValidationError("cost", "must not be negative")
	}
	if supplierFee.IsNegative() {
		return decimal.Zero, NewValidationError("supplier_fee", "must not be negative")
	}
	if supplierFee.GreaterThan(cost) {
		return decimal.Zero, NewValidationError("supplier_fee", "must not exceed cost")
	}

	salesNet := FloorToCent(sellingPrice.Div(vatDivisor))
	salesTax := sellingPrice.Sub(salesNet)

	costBase := cost.Sub(supplierFee)
	costNet := CeilToCent(costBase.Div(vatDivisor))
	costTaxCredit := costBase.Sub(costNet)

	return salesTax.Sub(costTaxCredit), nil
}
