package fx

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseRates(t *testing.T) {
	r, err := ParseRates("usd", "EUR=0.5, gbp=0.25,")
	if err != nil {
		t.Fatalf("ParseRates failed: %v", err)
	}
	if r.Base() != "USD" {
		t.Errorf("Base() = %s, want USD", r.Base())
	}
	want := []string{"EUR", "GBP", "USD"}
	got := r.Currencies()
	if len(got) != len(want) {
		t.Fatalf("Currencies() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Currencies()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestParseRates_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		table string
	}{
		{"missing base", "", "EUR=1"},
		{"missing separator", "USD", "EUR"},
		{"not a number", "USD", "EUR=abc"},
		{"zero rate", "USD", "EUR=0"},
		{"negative rate", "USD", "EUR=-1"},
		{"base not one", "USD", "USD=2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseRates(tt.base, tt.table); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestConvert(t *testing.T) {
	r, err := ParseRates("USD", "EUR=0.5,GBP=0.25")
	if err != nil {
		t.Fatalf("ParseRates failed: %v", err)
	}

	tests := []struct {
		amount   string
		from, to string
		want     string
	}{
		{"10", "USD", "EUR", "5"},
		{"10", "EUR", "USD", "20"},
		{"10", "EUR", "GBP", "5"},
		{"-3.33", "USD", "usd", "-3.33"},
		{"1", "GBP", "EUR", "2"},
		{"0.01", "USD", "GBP", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			got, err := r.Convert(decimal.RequireFromString(tt.amount), tt.from, tt.to)
			if err != nil {
				t.Fatalf("Convert failed: %v", err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Convert(%s %s -> %s) = %s, want %s", tt.amount, tt.from, tt.to, got, tt.want)
			}
		})
	}

	if _, err := r.Convert(decimal.NewFromInt(1), "JPY", "USD"); !errors.Is(err, ErrUnknownCurrency) {
		t.Errorf("expected ErrUnknownCurrency, got %v", err)
	}
}
