package ingest

import (
	"errors"
	"testing"
	"time"
)

func TestParseBudget(t *testing.T) {
	tests := []struct {
		in     string
		want   Amount
		wantOK bool
	}{
		{"USD 50,000 - 80,000", Amount{Min: 50000, Max: 80000, Currency: "USD"}, true},
		{"up to €1.2 million", Amount{Max: 1.2e6, Currency: "EUR"}, true},
		{"1.234.567,50 EUR", Amount{Max: 1234567.5, Currency: "EUR"}, true},
		{"minimum 10,000 GBP", Amount{Min: 10000, Currency: "GBP"}, true},
		{"US$ 45,000 (FY 2025)", Amount{Max: 45000, Currency: "USD"}, true},
		{"KES 2,500,000", Amount{Max: 2500000, Currency: "KES"}, true},
		{"5k", Amount{Max: 5000, Currency: "USD"}, true},
		{"open call, 3,000 dollars", Amount{Max: 3000, Currency: "USD"}, true},
		{"Budget TBD", Amount{}, false},
		{"", Amount{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseBudget(tt.in, "")
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseBudget(%q) = %+v, %v; want %+v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}

	if got, _ := ParseBudget("80,000", "chf"); got.Currency != "CHF" {
		t.Errorf("default currency not applied: %+v", got)
	}
	if v := (Amount{Min: 10000}).Value(); v != 10000 {
		t.Errorf("Value of a floor-only amount = %v", v)
	}
}

func TestParseDeadline(t *testing.T) {
	eod := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 23, 59, 59, 0, time.UTC) }
	tests := []struct {
		in      string
		locales []string
		want    time.Time
	}{
		{"2026-03-15", nil, eod(2026, 3, 15)},
		{"2026-03-15T10:00:00Z", nil, time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)},
		{"Closing date: 17 June 2025 1 p.m.", nil, time.Date(2025, 6, 17, 13, 0, 0, 0, time.UTC)},
		{"30/06/2025", nil, eod(2025, 6, 30)},
		{"03/04/2025", nil, eod(2025, 3, 4)},
		{"March 15th, 2026", nil, eod(2026, 3, 15)},
		{"21 de julio del 2025", []string{"es"}, eod(2025, 7, 21)},
		{"1er avril 2026", []string{"fr"}, eod(2026, 4, 1)},
		{"Submission closes on 17 June 2025 at noon", nil, eod(2025, 6, 17)},
	}
	for _, tt := range tests {
		got, err := ParseDeadline(tt.in, tt.locales)
		if err != nil {
			t.Errorf("ParseDeadline(%q): %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseDeadline(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"soon", "", "31/02/2025"} {
		if _, err := ParseDeadline(bad, []string{"en"}); !errors.Is(err, ErrUnparsableDate) {
			t.Errorf("ParseDeadline(%q) error = %v, want ErrUnparsableDate", bad, err)
		}
	}
}

func TestLabeledDeadline(t *testing.T) {
	if _, ok := LabeledDeadline("Published on 1 March 2026.", nil); ok {
		t.Error("an unlabeled date must not count as a deadline")
	}
	got, ok := LabeledDeadline("Fecha límite: 5 de mayo de 2026. Closing date 2026-05-02.", []string{"es"})
	if !ok {
		t.Fatal("expected a labeled deadline")
	}
	if want := time.Date(2026, 5, 2, 23, 59, 59, 0, time.UTC); !got.Equal(want) {
		t.Errorf("LabeledDeadline = %v, want the earliest labeled date %v", got, want)
	}
}
