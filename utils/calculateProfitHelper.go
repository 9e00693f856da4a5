package utils

import (
	"github.com/shopspring/decimal"
)

// ProfitRates carries the platform fee schedule used by the profit waterfall.
// All rates are fractions in [0, 1].
type ProfitRates struct {
	PlatformFeeRate     decimal.Decimal
	SupplierFeeRate     decimal.Decimal
	ReferrerBonusRate   decimal.Decimal
	BigMomProfitRate    decimal.Decimal
	MiddleMomProfitRate decimal.Decimal
}

func (r ProfitRates) Validate() error {
	checks := []struct {
		field string
		rate  decimal.Decimal
	}{
		{"platform_fee_rate", r.PlatformFeeRate},
		{"supplier_fee_rate", r.SupplierFeeRate},
		{"referrer_bonus_rate", r.ReferrerBonusRate},
		{"big_mom_profit_rate", r.BigMomProfitRate},
		{"middle_mom_profit_rate", r.MiddleMomProfitRate},
	}
	one := decimal.NewFromInt(1)
	for _, c := range checks {
		if c.rate.IsNegative() || c.rate.GreaterThan(one) {
			return NewValidationError(c.field, "must be between 0 and 1")
		}
	}
	return nil
}

// TierQualification records which distribution-chain tiers are present and
// qualified for an order. A missing or unqualified tier is simply false here;
// the waterfall decides who absorbs that tier's share.
type TierQualification struct {
	HasBigMom    bool
	HasMiddleMom bool
	HasSmallMom  bool
	HasReferrer  bool
}

// ProfitBreakdown is the full per-order money split. Every field is a final
// 2dp amount; PlatformProfit is the residual that makes the breakdown sum
// exactly to the selling price.
type ProfitBreakdown struct {
	SellingPrice decimal.Decimal
	Cost         decimal.Decimal

	PlatformFee    decimal.Decimal
	SupplierFee    decimal.Decimal
	Tax            decimal.Decimal
	ReferrerBonus  decimal.Decimal
	SupplierAmount decimal.Decimal

	BigMomProfit    decimal.Decimal
	MiddleMomProfit decimal.Decimal
	SmallMomProfit  decimal.Decimal
	PlatformProfit  decimal.Decimal
}

// Verify checks conservation: the breakdown must sum back to the selling
// price exactly. The supplier fee shows up twice in the sum on purpose: it is
// withheld from the supplier payable (SupplierAmount = cost - fee) and kept
// by the platform, so both sides of that withholding are counted when
// rebuilding the selling price from parts.
func (b ProfitBreakdown) Verify() error {
	sum := b.PlatformFee.
		Add(b.SupplierFee).
		Add(b.Tax).
		Add(b.ReferrerBonus).
		Add(b.SupplierAmount).
		Add(b.SupplierFee).
		Add(b.BigMomProfit).
		Add(b.MiddleMomProfit).
		Add(b.SmallMomProfit).
		Add(b.PlatformProfit)
	if !sum.Equal(b.SellingPrice) {
		return &ReconciliationError{
			Detail: "breakdown sum " + sum.String() + " does not equal selling price " + b.SellingPrice.String(),
		}
	}
	if b.BigMomProfit.IsNegative() || b.MiddleMomProfit.IsNegative() || b.SmallMomProfit.IsNegative() {
		return &ReconciliationError{Detail: "negative tier profit in breakdown"}
	}
	return nil
}

// CalculateProfitBreakdown runs the full per-order split.
//
// Deductions come off the selling price in a fixed order: platform fee
// (on selling price), supplier fee (on cost), net VAT, referrer bonus
// (on cost, reserved whether or not a referrer exists), then the supplier
// payable. What remains is the distributable pool handed to the tier
// waterfall. Tier amounts are floored to the cent; flooring remainders and
// the shares of absent tiers land in PlatformProfit, never in a payee
// amount, so the sum stays exact.
func CalculateProfitBreakdown(sellingPrice, cost decimal.Decimal, rates ProfitRates, tiers TierQualification) (ProfitBreakdown, error) {
	if err := rates.Validate(); err != nil {
		return ProfitBreakdown{}, err
	}
	if !sellingPrice.IsPositive() {
		return ProfitBreakdown{}, NewValidationError("selling_price", "must be positive")
	}
	if cost.IsNegative() {
		return ProfitBreakdown{}, NewValidationError("cost", "must not be negative")
	}
	if cost.GreaterThan(sellingPrice) {
		return ProfitBreakdown{}, NewValidationError("cost", "must not exceed selling price")
	}

	platformFee := FloorToCent(sellingPrice.Mul(rates.PlatformFeeRate))
	supplierFee := FloorToCent(cost.Mul(rates.SupplierFeeRate))

	tax, err := CalculateOrderTax(sellingPrice, cost, supplierFee)
	if err != nil {
		return ProfitBreakdown{}, err
	}

	// The bonus is reserved from the pool regardless of referrer presence;
	// an unawarded bonus reverts to the platform below.
	notionalBonus := FloorToCent(cost.Mul(rates.ReferrerBonusRate))

	supplierAmount := cost.Sub(supplierFee)

	distributable := sellingPrice.
		Sub(cost).
		Sub(platformFee).
		Sub(supplierFee).
		Sub(tax).
		Sub(notionalBonus)

	// Fees and tax eating past the margin is a ledger problem, not a split to
	// clamp. The caller flags the order and an operator sorts it out.
	if distributable.IsNegative() {
		return ProfitBreakdown{}, &ReconciliationError{
			Detail: "distributable profit " + distributable.String() +
				" is negative for selling price " + sellingPrice.String() +
				" and cost " + cost.String(),
		}
	}

	b := ProfitBreakdown{
		SellingPrice:   sellingPrice,
		Cost:           cost,
		PlatformFee:    platformFee,
		SupplierFee:    supplierFee,
		Tax:            tax,
		SupplierAmount: supplierAmount,
	}

	if tiers.HasReferrer {
		b.ReferrerBonus = notionalBonus
	} else {
		b.ReferrerBonus = decimal.Zero
		b.PlatformProfit = b.PlatformProfit.Add(notionalBonus)
	}

	big, middle, small, retained := allocateTierProfits(distributable, rates, tiers)
	b.BigMomProfit = big
	b.MiddleMomProfit = middle
	b.SmallMomProfit = small
	b.PlatformProfit = b.PlatformProfit.Add(retained)

	if err := b.Verify(); err != nil {
		return ProfitBreakdown{}, err
	}
	return b, nil
}

// allocateTierProfits splits the distributable pool across the present tiers.
// The lowest present tier absorbs flooring remainders; with no tiers present
// the platform keeps the pool. A zero pool pays no tier. Negative pools never
// reach the allocator; CalculateProfitBreakdown rejects them first.
func allocateTierProfits(d decimal.Decimal, rates ProfitRates, tiers TierQualification) (big, middle, small, retained decimal.Decimal) {
	big, middle, small = decimal.Zero, decimal.Zero, decimal.Zero

	if !d.IsPositive() {
		return big, middle, small, d
	}

	switch {
	case tiers.HasBigMom && tiers.HasMiddleMom && tiers.HasSmallMom:
		big = FloorToCent(d.Mul(rates.BigMomProfitRate))
		middle = FloorToCent(d.Sub(big).Mul(rates.MiddleMomProfitRate))
		small = d.Sub(big).Sub(middle)
		retained = decimal.Zero

	case !tiers.HasBigMom && tiers.HasMiddleMom && tiers.HasSmallMom:
		// The absent big tier's share stays with the platform; the middle
		// share is still computed on the undiminished pool.
		retained = FloorToCent(d.Mul(rates.BigMomProfitRate))
		middle = FloorToCent(d.Mul(rates.MiddleMomProfitRate))
		small = d.Sub(retained).Sub(middle)

	case !tiers.HasBigMom && !tiers.HasMiddleMom && tiers.HasSmallMom:
		bigShare := FloorToCent(d.Mul(rates.BigMomProfitRate))
		middleShare := FloorToCent(d.Sub(bigShare).Mul(rates.MiddleMomProfitRate))
		retained = bigShare.Add(middleShare)
		small = d.Sub(retained)

	case tiers.HasBigMom && !tiers.HasMiddleMom && tiers.HasSmallMom:
		// The middle tier's share rolls up to the big tier.
		big = FloorToCent(d.Mul(rates.BigMomProfitRate).Add(d.Mul(rates.MiddleMomProfitRate)))
		small = d.Sub(big)
		retained = decimal.Zero

	case tiers.HasBigMom && tiers.HasMiddleMom && !tiers.HasSmallMom:
		big = FloorToCent(d.Mul(rates.BigMomProfitRate))
		middle = d.Sub(big)
		retained = decimal.Zero

	case !tiers.HasBigMom && tiers.HasMiddleMom && !tiers.HasSmallMom:
		retained = FloorToCent(d.Mul(rates.BigMomProfitRate))
		middle = d.Sub(retained)

	case tiers.HasBigMom && !tiers.HasMiddleMom && !tiers.HasSmallMom:
		big = d
		retained = decimal.Zero

	default:
		retained = d
	}

	return big, middle, small, retained
}
