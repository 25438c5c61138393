package ledger

import (
	"math/rand/v2"
	"reflect"
	"sort"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSimplify_ExactMatches(t *testing.T) {
	b := BalanceMap{"A": d("30"), "B": d("-30"), "C": d("20"), "D": d("-20")}

	got := Simplify(b)
	want := []Transfer{
		{From: "B", To: "A", Amount: d("30")},
		{From: "D", To: "C", Amount: d("20")},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d transfers, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i].From != want[i].From || got[i].To != want[i].To || !got[i].Amount.Equal(want[i].Amount) {
			t.Errorf("transfer %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSimplify_Greedy(t *testing.T) {
	b := BalanceMap{"A": d("70"), "B": d("-30"), "C": d("-40")}

	got := Simplify(b)
	if len(got) != 2 {
		t.Fatalf("got %d transfers, want 2: %v", len(got), got)
	}
	paid := map[string]decimal.Decimal{}
	total := decimal.Zero
	for _, tr := range got {
		if tr.To != "A" {
			t.Errorf("transfer %+v should pay A", tr)
		}
		paid[tr.From] = paid[tr.From].Add(tr.Amount)
		total = total.Add(tr.Amount)
	}
	if !total.Equal(d("70")) {
		t.Errorf("total transferred = %s, want 70", total)
	}
	if !paid["B"].Equal(d("30")) || !paid["C"].Equal(d("40")) {
		t.Errorf("B paid %s, C paid %s; want 30 and 40", paid["B"], paid["C"])
	}
	// largest debtor goes first
	if got[0].From != "C" {
		t.Errorf("first transfer from %s, want C", got[0].From)
	}
}

func TestSimplify_EdgeCases(t *testing.T) {
	tests := []struct {
		name string
		in   BalanceMap
		want int
	}{
		{name: "nil map", in: nil, want: 0},
		{name: "all zero", in: BalanceMap{"A": d("0"), "B": d("0")}, want: 0},
		{name: "dust below epsilon dropped", in: BalanceMap{"A": d("0.004"), "B": d("-0.004")}, want: 0},
		{name: "single cent moves", in: BalanceMap{"A": d("0.01"), "B": d("-0.01")}, want: 1},
		{name: "duplicate balances pair up", in: BalanceMap{"A": d("10"), "B": d("10"), "C": d("-10"), "D": d("-10")}, want: 2},
		{name: "one creditor many debtors", in: BalanceMap{"A": d("60"), "B": d("-20"), "C": d("-20"), "D": d("-20")}, want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Simplify(tt.in)
			if len(got) != tt.want {
				t.Errorf("got %d transfers, want %d: %v", len(got), tt.want, got)
			}
			if tt.want == 0 && got != nil {
				t.Errorf("expected nil result, got %v", got)
			}
		})
	}
}

func randomBalances(r *rand.Rand, n int) BalanceMap {
	b := make(BalanceMap, n)
	sum := decimal.Zero
	for i := 0; i < n-1; i++ {
		cents := r.IntN(20001) - 10000
		// encourage exact negations and zero entries
		switch r.IntN(6) {
		case 0:
			cents = 0
		case 1:
			cents = 2500
		case 2:
			cents = -2500
		}
		v := decimal.New(int64(cents), -2)
		b[memberName(i)] = v
		sum = sum.Add(v)
	}
	b[memberName(n-1)] = sum.Neg()
	return b
}

func memberName(i int) string {
	return string(rune('A'+i%26)) + string(rune('a'+i/26))
}

func TestSimplify_Properties(t *testing.T) {
	r := rand.New(rand.NewPCG(42, 7))

	for iter := 0; iter < 500; iter++ {
		b := randomBalances(r, 2+r.IntN(12))
		transfers := Simplify(b)

		positive := decimal.Zero
		nonzero := 0
		for _, v := range b {
			if v.IsPositive() {
				positive = positive.Add(v)
			}
			if !negligible(v) {
				nonzero++
			}
		}

		total := decimal.Zero
		outgoing := map[string]decimal.Decimal{}
		for _, tr := range transfers {
			if !tr.Amount.IsPositive() {
				t.Fatalf("non-positive transfer %+v for %v", tr, b)
			}
			if tr.From == tr.To {
				t.Fatalf("self transfer %+v", tr)
			}
			total = total.Add(tr.Amount)
			outgoing[tr.From] = outgoing[tr.From].Add(tr.Amount)
		}

		if !withinEpsilon(total, positive) {
			t.Fatalf("transferred %s, positive balances %s, input %v", total, positive, b)
		}

		replayed := Replay(b, transfers)
		for m, v := range replayed {
			if !negligible(v) {
				t.Fatalf("%s left at %s after replay of %v on %v", m, v, transfers, b)
			}
		}

		for m, out := range outgoing {
			debt := b[m].Neg()
			if out.Sub(debt).GreaterThan(Epsilon) {
				t.Fatalf("%s pays %s but only owed %s", m, out, debt)
			}
		}

		// no worse than the greedy worst case of one transfer per non-zero party, minus one
		if nonzero > 0 && len(transfers) > nonzero-1 {
			t.Fatalf("%d transfers for %d non-zero parties: %v", len(transfers), nonzero, b)
		}
		if (len(transfers) == 0) != b.IsSettled() {
			t.Fatalf("empty result must mean a settled map: %v -> %v", b, transfers)
		}
	}
}

// greedyOnly settles b without the exact-match phase.
func greedyOnly(b BalanceMap) []Transfer {
	var parties []*party
	for _, m := range b.Members() {
		v := Round2(b[m])
		if negligible(v) {
			continue
		}
		parties = append(parties, &party{member: m, balance: v})
	}
	return matchGreedy(parties)
}

func TestSimplify_NeverWorseThanGreedy(t *testing.T) {
	r := rand.New(rand.NewPCG(2024, 11))

	for iter := 0; iter < 2000; iter++ {
		b := randomBalances(r, 2+r.IntN(12))
		got, greedy := Simplify(b), greedyOnly(b)
		if len(got) > len(greedy) {
			t.Fatalf("%d transfers with exact matching, %d greedy only, for %v:\n%v\n%v",
				len(got), len(greedy), b, got, greedy)
		}
	}
}

func TestSimplify_OrderIndependent(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for iter := 0; iter < 50; iter++ {
		b := randomBalances(r, 8)
		first := normalize(Simplify(b))

		// rebuilding the map yields a different iteration order
		rebuilt := make(BalanceMap, len(b))
		keys := b.Members()
		r.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
		for _, k := range keys {
			rebuilt[k] = b[k]
		}
		if second := normalize(Simplify(rebuilt)); !reflect.DeepEqual(first, second) {
			t.Fatalf("results differ for the same balances:\n%v\n%v", first, second)
		}
	}
}

func normalize(ts []Transfer) []string {
	out := make([]string, len(ts))
	for i, tr := range ts {
		out[i] = tr.From + ">" + tr.To + ":" + tr.Amount.StringFixed(2)
	}
	sort.Strings(out)
	return out
}
