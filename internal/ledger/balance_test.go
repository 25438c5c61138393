package ledger

import (
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
)

func TestApplySettlement(t *testing.T) {
	b := BalanceMap{"A": d("30"), "B": d("-30")}

	got, err := ApplySettlement(b, "B", "A", d("30"))
	if err != nil {
		t.Fatalf("ApplySettlement failed: %v", err)
	}
	if !got["A"].IsZero() || !got["B"].IsZero() {
		t.Errorf("balances after settlement = %v, want all zero", got)
	}
	if !b["A"].Equal(d("30")) {
		t.Error("input map was mutated")
	}

	partial, err := ApplySettlement(b, "B", "A", d("10.005"))
	if err != nil {
		t.Fatalf("ApplySettlement failed: %v", err)
	}
	if !partial["B"].Equal(d("-19.99")) || !partial["A"].Equal(d("19.99")) {
		t.Errorf("partial settlement = %v, want B=-19.99 A=19.99", partial)
	}
}

func TestApplySettlement_Validation(t *testing.T) {
	b := BalanceMap{"A": d("30"), "B": d("-30")}
	tests := []struct {
		name         string
		payer, payee string
		amount       string
	}{
		{"same party", "A", "A", "10"},
		{"zero amount", "B", "A", "0"},
		{"negative amount", "B", "A", "-1"},
		{"unknown payer", "Z", "A", "10"},
		{"unknown payee", "B", "Z", "10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ApplySettlement(b, tt.payer, tt.payee, d(tt.amount)); !IsValidation(err) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestCheckZeroSum(t *testing.T) {
	if err := (BalanceMap{"A": d("10"), "B": d("-9.99")}).CheckZeroSum(); err != nil {
		t.Errorf("residual of one cent should pass, got %v", err)
	}
	err := (BalanceMap{"A": d("10"), "B": d("-9.98")}).CheckZeroSum()
	if !IsInvariantViolation(err) {
		t.Fatalf("expected InvariantViolation, got %v", err)
	}
}

func TestBalanceMapHelpers(t *testing.T) {
	b := NewBalanceMap([]string{"Carol", "Alice", "Bob"})
	if got := b.Members(); got[0] != "Alice" || got[2] != "Carol" {
		t.Errorf("Members() = %v, want sorted", got)
	}
	if !b.IsSettled() {
		t.Error("new map should be settled")
	}
	c := b.Clone()
	c["Alice"] = d("5")
	if !b["Alice"].IsZero() {
		t.Error("Clone shares storage with the original")
	}
	if c.IsSettled() {
		t.Error("map with a non-zero balance reported settled")
	}
}

// Any sequence of expense applications, reversals and settlements keeps the
// map at zero sum.
func TestZeroSumUnderRandomOperations(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	members := []string{"Alice", "Bob", "Carol", "Dan", "Eve"}
	b := NewBalanceMap(members)

	type applied struct {
		owner   string
		amount  decimal.Decimal
		details []SplitDetail
	}
	var history []applied

	for step := 0; step < 1000; step++ {
		switch op := r.IntN(3); {
		case op == 0 || len(history) == 0:
			amount := decimal.New(int64(1+r.IntN(50000)), -2)
			participants := members[:1+r.IntN(len(members))]
			var split Split = Equal{}
			if r.IntN(2) == 0 {
				pcts := map[string]decimal.Decimal{}
				remaining := int64(10000)
				for i, m := range participants {
					share := remaining
					if i < len(participants)-1 {
						share = r.Int64N(remaining + 1)
					}
					pcts[m] = decimal.New(share, -2)
					remaining -= share
				}
				split = Percentage{Percentages: pcts}
			}
			details, err := ComputeSplit(amount, participants, split)
			if err != nil {
				if IsValidation(err) {
					continue
				}
				t.Fatalf("step %d: ComputeSplit failed: %v", step, err)
			}
			owner := members[r.IntN(len(members))]
			next, err := ApplySplit(b, owner, amount, details, Apply)
			if err != nil {
				t.Fatalf("step %d: ApplySplit failed: %v", step, err)
			}
			b = next
			history = append(history, applied{owner, amount, details})
		case op == 1:
			i := r.IntN(len(history))
			e := history[i]
			next, err := ApplySplit(b, e.owner, e.amount, e.details, Reverse)
			if err != nil {
				t.Fatalf("step %d: reverse failed: %v", step, err)
			}
			b = next
			history = append(history[:i], history[i+1:]...)
		default:
			transfers := Simplify(b)
			if len(transfers) == 0 {
				continue
			}
			tr := transfers[r.IntN(len(transfers))]
			next, err := ApplySettlement(b, tr.From, tr.To, tr.Amount)
			if err != nil {
				t.Fatalf("step %d: settlement failed: %v", step, err)
			}
			b = next
		}

		if err := b.CheckZeroSum(); err != nil {
			t.Fatalf("step %d: %v (balances %v)", step, err, b)
		}
	}
}
