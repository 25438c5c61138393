// Package ledger holds the pure bookkeeping core: per-group balance maps,
// split computation and application, and debt simplification.
//
// Every amount is a shopspring decimal rounded to two places. Positive
// balances are owed money, negative balances owe money, and the balances of a
// group always sum to zero within Epsilon.
//
// Nothing in this package performs I/O or locking. Callers own the
// transaction boundary and the per-group serialization.
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// BalanceMap maps a member id to that member's signed balance in one group.
type BalanceMap map[string]decimal.Decimal

// NewBalanceMap returns a map with every member at zero.
func NewBalanceMap(members []string) BalanceMap {
	b := make(BalanceMap, len(members))
	for _, m := range members {
		b[m] = decimal.Zero
	}
	return b
}

// Clone returns an independent copy.
func (b BalanceMap) Clone() BalanceMap {
	out := make(BalanceMap, len(b))
	for m, v := range b {
		out[m] = v
	}
	return out
}

// Has reports whether member is part of the map.
func (b BalanceMap) Has(member string) bool {
	_, ok := b[member]
	return ok
}

// Members returns the member ids in sorted order.
func (b BalanceMap) Members() []string {
	members := make([]string, 0, len(b))
	for m := range b {
		members = append(members, m)
	}
	sort.Strings(members)
	return members
}

// Sum returns the total of all balances.
func (b BalanceMap) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, v := range b {
		sum = sum.Add(v)
	}
	return sum
}

// CheckZeroSum returns an *InvariantViolation when the balances drift more
// than Epsilon away from zero.
func (b BalanceMap) CheckZeroSum() error {
	sum := b.Sum()
	if sum.Abs().GreaterThan(Epsilon) {
		return &InvariantViolation{Invariant: "balances must sum to zero", Residual: sum}
	}
	return nil
}

// IsSettled reports whether every balance is within Epsilon of zero.
func (b BalanceMap) IsSettled() bool {
	for _, v := range b {
		if !negligible(v) {
			return false
		}
	}
	return true
}

// ApplySettlement records that payer handed amount to payee and returns the
// updated copy. Both must be members; payer and payee must differ and the
// amount must be positive.
func ApplySettlement(b BalanceMap, payer, payee string, amount decimal.Decimal) (BalanceMap, error) {
	if payer == payee {
		return nil, Validationf("payee", "payer and payee must differ")
	}
	if !amount.IsPositive() {
		return nil, Validationf("amount", "must be positive, got %s", amount.String())
	}
	if !b.Has(payer) {
		return nil, Validationf("payer", "%q is not a member of the group", payer)
	}
	if !b.Has(payee) {
		return nil, Validationf("payee", "%q is not a member of the group", payee)
	}

	out := b.Clone()
	amount = Round2(amount)
	out[payer] = Round2(out[payer].Add(amount))
	out[payee] = Round2(out[payee].Sub(amount))
	return out, nil
}

// Replay applies transfers to a copy of b as if each one had been settled.
// Unknown members are added on the fly.
func Replay(b BalanceMap, transfers []Transfer) BalanceMap {
	out := b.Clone()
	for _, t := range transfers {
		out[t.From] = out[t.From].Add(t.Amount)
		out[t.To] = out[t.To].Sub(t.Amount)
	}
	return out
}
