package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateOrderTax(t *testing.T) {
	cases := []struct {
		name         string
		sellingPrice string
		cost         string
		supplierFee  string
		want         string
	}{
		// sales leg: 1000 - floor2(1000/1.05) = 47.62
		// cost leg: 686 - ceil2(686/1.05) = 32.66
		{"standard order", "1000", "700", "14", "14.96"},
		{"zero cost", "105", "0", "0", "5.00"},
		{"zero price and cost", "0", "0", "0", "0.00"},
		// rounding bias: floor on sales net, ceil on cost net
		{"one cent price", "0.01", "0", "0", "0.01"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := CalculateOrderTax(dec(c.sellingPrice), dec(c.cost), dec(c.supplierFee))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(dec(c.want)) {
				t.Errorf("tax = %s, want %s", got, c.want)
			}
		})
	}
}

func TestCalculateOrderTaxRejectsBadInput(t *testing.T) {
	if _, err := CalculateOrderTax(dec("-1"), dec("0"), dec("0")); !IsValidationError(err) {
		t.Errorf("negative selling price: got %v, want validation error", err)
	}
	if _, err := CalculateOrderTax(dec("100"), dec("-1"), dec("0")); !IsValidationError(err) {
		t.Errorf("negative cost: got %v, want validation error", err)
	}
	if _, err := CalculateOrderTax(dec("100"), dec("50"), dec("-1")); !IsValidationError(err) {
		t.Errorf("negative supplier fee: got %v, want validation error", err)
	}
	if _, err := CalculateOrderTax(dec("100"), dec("50"), dec("51")); !IsValidationError(err) {
		t.Errorf("fee above cost: got %v, want validation error", err)
	}
}

func TestFloorAndCeilToCent(t *testing.T) {
	if got := FloorToCent(dec("35.556")); !got.Equal(dec("35.55")) {
		t.Errorf("FloorToCent(35.556) = %s, want 35.55", got)
	}
	if got := CeilToCent(dec("653.3334")); !got.Equal(dec("653.34")) {
		t.Errorf("CeilToCent(653.3334) = %s, want 653.34", got)
	}
	if got := FloorToCent(dec("10.00")); !got.Equal(dec("10.00")) {
		t.Errorf("FloorToCent(10.00) = %s, want 10.00", got)
	}
}
