package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// SplitKind identifies how an expense is divided among its members.
type SplitKind string

const (
	SplitEqual      SplitKind = "equal"
	SplitExact      SplitKind = "exact"
	SplitPercentage SplitKind = "percentage"
)

// ParseSplitKind converts a wire or storage value into a SplitKind.
func ParseSplitKind(s string) (SplitKind, error) {
	switch k := SplitKind(strings.ToLower(strings.TrimSpace(s))); k {
	case SplitEqual, SplitExact, SplitPercentage:
		return k, nil
	default:
		return "", Validationf("split_type", "unknown split type %q", s)
	}
}

// Split is the tagged variant describing an expense split: Equal, Exact or
// Percentage.
type Split interface {
	Kind() SplitKind
	owed(amount decimal.Decimal, members []string) ([]SplitDetail, error)
}

// SplitDetail is one member's owed amount for an expense.
type SplitDetail struct {
	Member string
	Owed   decimal.Decimal
}

// Equal divides the amount evenly.
type Equal struct{}

// Exact assigns each member a caller-chosen amount.
type Exact struct {
	Amounts map[string]decimal.Decimal
}

// Percentage assigns each member a share of 100.
type Percentage struct {
	Percentages map[string]decimal.Decimal
}

func (Equal) Kind() SplitKind      { return SplitEqual }
func (Exact) Kind() SplitKind      { return SplitExact }
func (Percentage) Kind() SplitKind { return SplitPercentage }

// NewSplit builds the variant for kind from raw per-member values. Values are
// ignored for equal splits.
func NewSplit(kind SplitKind, values map[string]decimal.Decimal) (Split, error) {
	switch kind {
	case SplitEqual:
		return Equal{}, nil
	case SplitExact:
		return Exact{Amounts: values}, nil
	case SplitPercentage:
		return Percentage{Percentages: values}, nil
	default:
		return nil, Validationf("split_type", "unknown split type %q", string(kind))
	}
}

// RawValues returns the per-member inputs a split was built from, or nil for
// equal splits.
func RawValues(s Split) map[string]decimal.Decimal {
	switch v := s.(type) {
	case Exact:
		return v.Amounts
	case Percentage:
		return v.Percentages
	default:
		return nil
	}
}

// owed for equal splits rounds each share down to cents. The last member
// takes whatever is left so the details add up to the amount; that is at
// most one cent per member more than the others.
func (Equal) owed(amount decimal.Decimal, members []string) ([]SplitDetail, error) {
	n := decimal.NewFromInt(int64(len(members)))
	share := amount.Div(n).RoundDown(2)

	details := make([]SplitDetail, len(members))
	assigned := decimal.Zero
	for i, m := range members {
		owed := share
		if i == len(members)-1 {
			owed = amount.Sub(assigned)
		}
		details[i] = SplitDetail{Member: m, Owed: owed}
		assigned = assigned.Add(owed)
	}
	return details, nil
}

func (s Exact) owed(amount decimal.Decimal, members []string) ([]SplitDetail, error) {
	if err := checkValueKeys("amounts", s.Amounts, members); err != nil {
		return nil, err
	}

	details := make([]SplitDetail, len(members))
	total := decimal.Zero
	for i, m := range members {
		v, ok := s.Amounts[m]
		if !ok {
			return nil, Validationf("amounts", "missing exact amount for %q", m)
		}
		if v.IsNegative() {
			return nil, Validationf("amounts", "amount for %q cannot be negative", m)
		}
		v = Round2(v)
		details[i] = SplitDetail{Member: m, Owed: v}
		total = total.Add(v)
	}

	if !withinEpsilon(total, amount) {
		return nil, Validationf("amounts", "exact amounts sum to %s, expected %s", total.StringFixed(2), amount.StringFixed(2))
	}
	return details, nil
}

func (s Percentage) owed(amount decimal.Decimal, members []string) ([]SplitDetail, error) {
	if err := checkValueKeys("percentages", s.Percentages, members); err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, m := range members {
		p, ok := s.Percentages[m]
		if !ok {
			return nil, Validationf("percentages", "missing percentage for %q", m)
		}
		if p.IsNegative() || p.GreaterThan(hundred) {
			return nil, Validationf("percentages", "percentage for %q must be between 0 and 100", m)
		}
		total = total.Add(p)
	}
	if !withinEpsilon(total, hundred) {
		return nil, Validationf("percentages", "percentages sum to %s, expected 100", total.String())
	}

	details := make([]SplitDetail, len(members))
	assigned := decimal.Zero
	last := -1
	for i, m := range members {
		details[i] = SplitDetail{
			Member: m,
			Owed:   Round2(s.Percentages[m].Div(hundred).Mul(amount)),
		}
		assigned = assigned.Add(details[i].Owed)
		if s.Percentages[m].IsPositive() {
			last = i
		}
	}

	// A residual within Epsilon is left for the owner to absorb. Rounding
	// drift beyond that goes to the last member with a non-zero share.
	if withinEpsilon(assigned, amount) || last < 0 {
		return details, nil
	}
	owed := amount.Sub(assigned.Sub(details[last].Owed))
	if owed.IsNegative() {
		return nil, Validationf("amount", "%s is too small to split by these percentages", amount.StringFixed(2))
	}
	details[last].Owed = owed
	return details, nil
}

// checkValueKeys rejects raw values for people outside the member list.
func checkValueKeys(field string, values map[string]decimal.Decimal, members []string) error {
	set := make(map[string]struct{}, len(members))
	for _, m := range members {
		set[m] = struct{}{}
	}
	for m := range values {
		if _, ok := set[m]; !ok {
			return Validationf(field, "%q is not one of the expense members", m)
		}
	}
	return nil
}

// ComputeSplit returns the ordered per-member breakdown of amount. Members
// keep the order they were given in.
func ComputeSplit(amount decimal.Decimal, members []string, split Split) ([]SplitDetail, error) {
	if !amount.IsPositive() {
		return nil, Validationf("amount", "must be positive, got %s", amount.String())
	}
	if len(members) == 0 {
		return nil, Validationf("members", "at least one member is required")
	}
	seen := make(map[string]struct{}, len(members))
	for _, m := range members {
		if strings.TrimSpace(m) == "" {
			return nil, Validationf("members", "member id cannot be blank")
		}
		if _, dup := seen[m]; dup {
			return nil, Validationf("members", "duplicate member %q", m)
		}
		seen[m] = struct{}{}
	}
	if split == nil {
		return nil, Validationf("split_type", "unknown split type")
	}

	amount = Round2(amount)
	details, err := split.owed(amount, members)
	if err != nil {
		return nil, err
	}
	if err := CheckDetails(amount, details); err != nil {
		return nil, err
	}
	return details, nil
}

// CheckDetails verifies that details add up to amount within Epsilon.
func CheckDetails(amount decimal.Decimal, details []SplitDetail) error {
	total := decimal.Zero
	for _, d := range details {
		total = total.Add(d.Owed)
	}
	if !withinEpsilon(total, amount) {
		return &InvariantViolation{
			Invariant: fmt.Sprintf("split details must add up to %s", amount.StringFixed(2)),
			Residual:  total.Sub(amount),
		}
	}
	return nil
}

// Sign selects between applying and reversing an expense.
type Sign int

const (
	Apply   Sign = 1
	Reverse Sign = -1
)

// ApplySplit applies (Apply) or undoes (Reverse) an expense on a copy of b.
//
// The owner is credited the full amount and every member is debited their
// owed share. Any rounding residual left in the sum is then subtracted from
// the owner, so the owner's balance is not purely "paid minus own share".
// A residual larger than Epsilon is an InvariantViolation and nothing is
// returned.
func ApplySplit(b BalanceMap, owner string, amount decimal.Decimal, details []SplitDetail, sign Sign) (BalanceMap, error) {
	if sign != Apply && sign != Reverse {
		return nil, fmt.Errorf("invalid sign %d", sign)
	}
	if !b.Has(owner) {
		return nil, Validationf("owner", "%q is not a member of the group", owner)
	}
	for _, d := range details {
		if !b.Has(d.Member) {
			return nil, Validationf("members", "%q is not a member of the group", d.Member)
		}
	}
	if err := CheckDetails(amount, details); err != nil {
		return nil, err
	}

	s := decimal.NewFromInt(int64(sign))
	out := b.Clone()
	out[owner] = out[owner].Add(s.Mul(amount))
	for _, d := range details {
		out[d.Member] = out[d.Member].Sub(s.Mul(d.Owed))
	}

	residual := out.Sum()
	if residual.Abs().GreaterThan(Epsilon) {
		return nil, &InvariantViolation{Invariant: "balances must sum to zero", Residual: residual}
	}
	if !residual.IsZero() {
		out[owner] = Round2(out[owner].Sub(residual))
	}
	return out, nil
}
