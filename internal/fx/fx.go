// Package fx converts amounts between currencies using a static rate table.
//
// Rates are configured once at startup (FX_RATES) and never refreshed; the
// table is only used to display cross-group summaries and never moves a
// balance.
package fx

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnknownCurrency is returned when a currency has no configured rate.
var ErrUnknownCurrency = errors.New("unknown currency")

// Rates holds how many units of each currency one unit of Base buys.
type Rates struct {
	base  string
	rates map[string]decimal.Decimal
}

// NewRates builds a table from explicit rates. Base is always present at 1.
func NewRates(base string, rates map[string]decimal.Decimal) (*Rates, error) {
	base = normalize(base)
	if base == "" {
		return nil, fmt.Errorf("base currency is required")
	}
	r := &Rates{base: base, rates: map[string]decimal.Decimal{base: decimal.NewFromInt(1)}}
	for code, rate := range rates {
		code = normalize(code)
		if !rate.IsPositive() {
			return nil, fmt.Errorf("rate for %s must be positive, got %s", code, rate)
		}
		if code == base && !rate.Equal(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("rate for base currency %s must be 1", base)
		}
		r.rates[code] = rate
	}
	return r, nil
}

// ParseRates reads a table in the form "EUR=0.92,GBP=0.79".
func ParseRates(base, table string) (*Rates, error) {
	rates := make(map[string]decimal.Decimal)
	for _, pair := range strings.Split(table, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		code, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid rate %q: expected CODE=RATE", pair)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid rate for %s: %w", code, err)
		}
		rates[code] = rate
	}
	return NewRates(base, rates)
}

// Base returns the base currency code.
func (r *Rates) Base() string {
	return r.base
}

// Currencies returns the configured currency codes in sorted order.
func (r *Rates) Currencies() []string {
	codes := make([]string, 0, len(r.rates))
	for code := range r.rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Convert expresses amount in currency from as currency to, rounded to cents.
func (r *Rates) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from, to = normalize(from), normalize(to)
	if from == to {
		return amount.Round(2), nil
	}
	fromRate, ok := r.rates[from]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s: %w", from, ErrUnknownCurrency)
	}
	toRate, ok := r.rates[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s: %w", to, ErrUnknownCurrency)
	}
	return amount.Mul(toRate).DivRound(fromRate, 8).Round(2), nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
