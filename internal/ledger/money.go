package ledger

import "github.com/shopspring/decimal"

// Epsilon is the rounding tolerance used for every ledger comparison (0.01).
var Epsilon = decimal.New(1, -2)

var hundred = decimal.NewFromInt(100)

// Round2 rounds to two decimal places, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// withinEpsilon reports whether a and b differ by at most Epsilon.
func withinEpsilon(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Epsilon)
}

// negligible reports whether |d| < Epsilon.
func negligible(d decimal.Decimal) bool {
	return d.Abs().LessThan(Epsilon)
}

// moneyKey is a canonical string form used for map lookups.
func moneyKey(d decimal.Decimal) string {
	return Round2(d).StringFixed(2)
}
