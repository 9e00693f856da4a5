package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func defaultRates() ProfitRates {
	return ProfitRates{
		PlatformFeeRate:     decimal.NewFromFloat(0.02),
		SupplierFeeRate:     decimal.NewFromFloat(0.02),
		ReferrerBonusRate:   decimal.NewFromFloat(0.02),
		BigMomProfitRate:    decimal.NewFromFloat(0.15),
		MiddleMomProfitRate: decimal.NewFromFloat(0.28),
	}
}

func allTiers() TierQualification {
	return TierQualification{HasBigMom: true, HasMiddleMom: true, HasSmallMom: true, HasReferrer: true}
}

// Full chain on a 1000/700 order. Every downstream amount is pinned so any
// change to rounding or deduction order shows up here.
func TestCalculateProfitBreakdownFullChain(t *testing.T) {
	b, err := CalculateProfitBreakdown(dec("1000"), dec("700"), defaultRates(), allTiers())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"PlatformFee", b.PlatformFee, "20.00"},
		{"SupplierFee", b.SupplierFee, "14.00"},
		{"Tax", b.Tax, "14.96"},
		{"ReferrerBonus", b.ReferrerBonus, "14.00"},
		{"SupplierAmount", b.SupplierAmount, "686.00"},
		{"BigMomProfit", b.BigMomProfit, "35.55"},
		{"MiddleMomProfit", b.MiddleMomProfit, "56.41"},
		{"SmallMomProfit", b.SmallMomProfit, "145.08"},
		{"PlatformProfit", b.PlatformProfit, "0"},
	}
	for _, c := range checks {
		if !c.got.Equal(dec(c.want)) {
			t.Errorf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}
	if err := b.Verify(); err != nil {
		t.Errorf("verify failed: %v", err)
	}
}

// The notional bonus is always reserved from the pool; without a referrer it
// reverts to the platform, leaving the tier amounts untouched.
func TestCalculateProfitBreakdownNoReferrer(t *testing.T) {
	tiers := allTiers()
	tiers.HasReferrer = false

	b, err := CalculateProfitBreakdown(dec("1000"), dec("700"), defaultRates(), tiers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !b.ReferrerBonus.IsZero() {
		t.Errorf("ReferrerBonus = %s, want 0", b.ReferrerBonus)
	}
	if !b.PlatformProfit.Equal(dec("14.00")) {
		t.Errorf("PlatformProfit = %s, want 14.00", b.PlatformProfit)
	}

	withReferrer, _ := CalculateProfitBreakdown(dec("1000"), dec("700"), defaultRates(), allTiers())
	if !b.BigMomProfit.Equal(withReferrer.BigMomProfit) ||
		!b.MiddleMomProfit.Equal(withReferrer.MiddleMomProfit) ||
		!b.SmallMomProfit.Equal(withReferrer.SmallMomProfit) {
		t.Error("tier amounts must not depend on referrer presence")
	}
	if err := b.Verify(); err != nil {
		t.Errorf("verify failed: %v", err)
	}
}

// Distributable pool for the 1000/700 order is 237.04; each qualification
// combination splits it differently but the pool total never changes.
func TestCalculateProfitBreakdownWaterfallBranches(t *testing.T) {
	pool := dec("237.04")

	cases := []struct {
		name             string
		big, mid, small  bool
		wantBig          string
		wantMiddle       string
		wantSmall        string
		wantPlatformPart string
	}{
		{"all tiers", true, true, true, "35.55", "56.41", "145.08", "0"},
		{"no big", false, true, true, "0", "66.37", "135.12", "35.55"},
		{"small only", false, false, true, "0", "0", "145.08", "91.96"},
		{"no middle", true, false, true, "101.92", "0", "135.12", "0"},
		{"big only", true, false, false, "237.04", "0", "0", "0"},
		{"no tiers", false, false, false, "0", "0", "0", "237.04"},
		{"no small", true, true, false, "35.55", "201.49", "0", "0"},
		{"middle only", false, true, false, "0", "201.49", "0", "35.55"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tiers := TierQualification{HasBigMom: c.big, HasMiddleMom: c.mid, HasSmallMom: c.small, HasReferrer: true}
			b, err := CalculateProfitBreakdown(dec("1000"), dec("700"), defaultRates(), tiers)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !b.BigMomProfit.Equal(dec(c.wantBig)) {
				t.Errorf("big = %s, want %s", b.BigMomProfit, c.wantBig)
			}
			if !b.MiddleMomProfit.Equal(dec(c.wantMiddle)) {
				t.Errorf("middle = %s, want %s", b.MiddleMomProfit, c.wantMiddle)
			}
			if !b.SmallMomProfit.Equal(dec(c.wantSmall)) {
				t.Errorf("small = %s, want %s", b.SmallMomProfit, c.wantSmall)
			}
			if !b.PlatformProfit.Equal(dec(c.wantPlatformPart)) {
				t.Errorf("platform = %s, want %s", b.PlatformProfit, c.wantPlatformPart)
			}

			split := b.BigMomProfit.Add(b.MiddleMomProfit).Add(b.SmallMomProfit).Add(b.PlatformProfit)
			if !split.Equal(pool) {
				t.Errorf("pool split %s != distributable %s", split, pool)
			}
			if err := b.Verify(); err != nil {
				t.Errorf("verify failed: %v", err)
			}
		})
	}
}

func TestCalculateProfitBreakdownDeterministic(t *testing.T) {
	first, err := CalculateProfitBreakdown(dec("123.45"), dec("67.89"), defaultRates(), allTiers())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 100; i++ {
		again, err := CalculateProfitBreakdown(dec("123.45"), dec("67.89"), defaultRates(), allTiers())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		pairs := []struct {
			a, b decimal.Decimal
		}{
			{first.PlatformFee, again.PlatformFee},
			{first.SupplierFee, again.SupplierFee},
			{first.Tax, again.Tax},
			{first.ReferrerBonus, again.ReferrerBonus},
			{first.SupplierAmount, again.SupplierAmount},
			{first.BigMomProfit, again.BigMomProfit},
			{first.MiddleMomProfit, again.MiddleMomProfit},
			{first.SmallMomProfit, again.SmallMomProfit},
			{first.PlatformProfit, again.PlatformProfit},
		}
		for _, p := range pairs {
			if p.a.String() != p.b.String() {
				t.Fatalf("run %d differs: %+v vs %+v", i, again, first)
			}
		}
	}
}

func TestCalculateProfitBreakdownConservationSweep(t *testing.T) {
	prices := []string{"0.03", "1", "9.99", "100", "499.99", "1000", "123456.78"}
	tierCombos := []TierQualification{
		{true, true, true, true},
		{false, true, true, false},
		{true, false, true, true},
		{false, false, false, false},
	}

	for _, p := range prices {
		price := dec(p)
		cost := FloorToCent(price.Mul(dec("0.7")))
		for _, tiers := range tierCombos {
			b, err := CalculateProfitBreakdown(price, cost, defaultRates(), tiers)
			if err != nil {
				t.Fatalf("price=%s tiers=%+v: %v", p, tiers, err)
			}
			if err := b.Verify(); err != nil {
				t.Errorf("price=%s tiers=%+v: %v", p, tiers, err)
			}
		}
	}
}

// A near-break-even order whose fees and tax push the pool below zero must be
// reported, never retained as a negative platform residual.
func TestCalculateProfitBreakdownNegativeDistributable(t *testing.T) {
	_, err := CalculateProfitBreakdown(dec("100"), dec("99"), defaultRates(), allTiers())
	if !IsReconciliationError(err) {
		t.Fatalf("negative distributable: got %v, want reconciliation error", err)
	}
}

func TestCalculateProfitBreakdownValidation(t *testing.T) {
	rates := defaultRates()

	if _, err := CalculateProfitBreakdown(dec("-1"), dec("0"), rates, allTiers()); !IsValidationError(err) {
		t.Errorf("negative price: got %v, want validation error", err)
	}
	if _, err := CalculateProfitBreakdown(dec("0"), dec("0"), rates, allTiers()); !IsValidationError(err) {
		t.Errorf("zero price: got %v, want validation error", err)
	}
	if _, err := CalculateProfitBreakdown(dec("100"), dec("200"), rates, allTiers()); !IsValidationError(err) {
		t.Errorf("cost above price: got %v, want validation error", err)
	}

	bad := rates
	bad.BigMomProfitRate = dec("1.5")
	if _, err := CalculateProfitBreakdown(dec("100"), dec("50"), bad, allTiers()); !IsValidationError(err) {
		t.Errorf("rate above 1: got %v, want validation error", err)
	}
	bad = rates
	bad.SupplierFeeRate = dec("-0.1")
	if _, err := CalculateProfitBreakdown(dec("100"), dec("50"), bad, allTiers()); !IsValidationError(err) {
		t.Errorf("negative rate: got %v, want validation error", err)
	}
}

func TestProfitBreakdownVerifyCatchesDrift(t *testing.T) {
	b, err := CalculateProfitBreakdown(dec("1000"), dec("700"), defaultRates(), allTiers())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b.SmallMomProfit = b.SmallMomProfit.Add(dec("0.01"))
	if err := b.Verify(); !IsReconciliationError(err) {
		t.Errorf("tampered breakdown: got %v, want reconciliation error", err)
	}
}
