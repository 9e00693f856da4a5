package utils

import (
	"fmt"
	"strconv"
	"time"
)

// Settlement periods are half-month windows encoded as YYYYMM + "a"|"b".
// "a" covers day 1 through 15, "b" covers day 16 through end of month.

// SettlementPeriodFor returns the period code containing t.
func SettlementPeriodFor(t time.Time) string {
	half := "a"
	if t.Day() > 15 {
		half = "b"
	}
	return fmt.Sprintf("%04d%02d%s", t.Year(), int(t.Month()), half)
}

// PreviousSettlementPeriod returns the period immediately before the one
// containing t. A batch run on day 1 settles the prior month's "b" half; a
// run on day 16 settles the current month's "a" half.
func PreviousSettlementPeriod(t time.Time) string {
	if t.Day() > 15 {
		return fmt.Sprintf("%04d%02d%s", t.Year(), int(t.Month()), "a")
	}
	prev := t.AddDate(0, 0, -t.Day())
	return fmt.Sprintf("%04d%02d%s", prev.Year(), int(prev.Month()), "b")
}

// PeriodsForMonth returns both half-month period codes of the given month.
func PeriodsForMonth(year int, month time.Month) []string {
	return []string{
		fmt.Sprintf("%04d%02d%s", year, int(month), "a"),
		fmt.Sprintf("%04d%02d%s", year, int(month), "b"),
	}
}

// ParseSettlementPeriod validates a period code and returns its half-open
// window [start, end).
func ParseSettlementPeriod(code string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if len(code) != 7 {
		return time.Time{}, time.Time{}, NewValidationError("period", fmt.Sprintf("invalid period code %q", code))
	}
	// Atoi alone would accept a signed year like "-123".
	for i := 0; i < 6; i++ {
		if code[i] < '0' || code[i] > '9' {
			return time.Time{}, time.Time{}, NewValidationError("period", fmt.Sprintf("invalid period code %q", code))
		}
	}

	year, _ := strconv.Atoi(code[0:4])
	monthNum, _ := strconv.Atoi(code[4:6])
	if monthNum < 1 || monthNum > 12 {
		return time.Time{}, time.Time{}, NewValidationError("period", fmt.Sprintf("invalid month in period code %q", code))
	}
	month := time.Month(monthNum)

	switch code[6] {
	case 'a':
		start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
		end := time.Date(year, month, 16, 0, 0, 0, 0, loc)
		return start, end, nil
	case 'b':
		start := time.Date(year, month, 16, 0, 0, 0, 0, loc)
		end := time.Date(year, month, 1, 0, 0, 0, 0, loc).AddDate(0, 1, 0)
		return start, end, nil
	default:
		return time.Time{}, time.Time{}, NewValidationError("period", fmt.Sprintf("invalid half marker in period code %q", code))
	}
}

// ValidateSettlementPeriod reports whether code is a well-formed period code.
func ValidateSettlementPeriod(code string) error {
	_, _, err := ParseSettlementPeriod(code, time.UTC)
	return err
}

func ContainsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
