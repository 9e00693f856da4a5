package utils

import (
	"testing"
	"time"
)

func TestSettlementPeriodFor(t *testing.T) {
	cases := []struct {
		date string
		want string
	}{
		{"2026-03-01", "202603a"},
		{"2026-03-15", "202603a"},
		{"2026-03-16", "202603b"},
		{"2026-03-31", "202603b"},
		{"2026-12-16", "202612b"},
	}
	for _, c := range cases {
		d, err := time.Parse("2006-01-02", c.date)
		if err != nil {
			t.Fatal(err)
		}
		if got := SettlementPeriodFor(d); got != c.want {
			t.Errorf("SettlementPeriodFor(%s) = %s, want %s", c.date, got, c.want)
		}
	}
}

func TestPreviousSettlementPeriod(t *testing.T) {
	cases := []struct {
		date string
		want string
	}{
		// A run on day 1 settles the prior month's second half.
		{"2026-03-01", "202602b"},
		{"2026-01-01", "202512b"},
		// A run on day 16 settles the current month's first half.
		{"2026-03-16", "202603a"},
		{"2026-03-10", "202602b"},
		{"2026-03-20", "202603a"},
	}
	for _, c := range cases {
		d, err := time.Parse("2006-01-02", c.date)
		if err != nil {
			t.Fatal(err)
		}
		if got := PreviousSettlementPeriod(d); got != c.want {
			t.Errorf("PreviousSettlementPeriod(%s) = %s, want %s", c.date, got, c.want)
		}
	}
}

func TestParseSettlementPeriod(t *testing.T) {
	start, end, err := ParseSettlementPeriod("202602b", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if got := start.Format("2006-01-02"); got != "2026-02-16" {
		t.Errorf("start = %s, want 2026-02-16", got)
	}
	// Half-open: the window ends at the first instant of March.
	if got := end.Format("2006-01-02"); got != "2026-03-01" {
		t.Errorf("end = %s, want 2026-03-01", got)
	}

	start, end, err = ParseSettlementPeriod("202602a", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if got := start.Format("2006-01-02"); got != "2026-02-01" {
		t.Errorf("start = %s, want 2026-02-01", got)
	}
	if got := end.Format("2006-01-02"); got != "2026-02-16" {
		t.Errorf("end = %s, want 2026-02-16", got)
	}

	// "-12301a" is seven characters and Atoi-parsable, but not a period code.
	for _, bad := range []string{"", "202602", "202602c", "2026a2a", "209913a", "2026-2a", "-12301a", "+12301a"} {
		if _, _, err := ParseSettlementPeriod(bad, time.UTC); err == nil {
			t.Errorf("ParseSettlementPeriod(%q): expected error", bad)
		}
	}
}

func TestPeriodsForMonth(t *testing.T) {
	got := PeriodsForMonth(2026, time.February)
	if len(got) != 2 || got[0] != "202602a" || got[1] != "202602b" {
		t.Errorf("PeriodsForMonth = %v", got)
	}
}
