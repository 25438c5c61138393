package accounting

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"github.com/mmynk/groupledger/internal/fx"
	"github.com/mmynk/groupledger/internal/ledger"
	"github.com/mmynk/groupledger/internal/metrics"
	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/internal/notify"
	"github.com/mmynk/groupledger/internal/storage"
	"github.com/mmynk/groupledger/internal/storage/sqlite"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingPublisher) Publish(e notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *recordingPublisher) last() notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return notify.Event{}
	}
	return r.events[len(r.events)-1]
}

func newTestStore(t *testing.T) storage.Store {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "groupledger-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertBalances(t *testing.T, m *Manager, groupID string, want map[string]string) {
	t.Helper()
	got, err := m.Balances(context.Background(), groupID)
	if err != nil {
		t.Fatalf("Balances failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Balances = %v, want %v", got, want)
	}
	for member, w := range want {
		if !got[member].Equal(d(w)) {
			t.Errorf("balance[%s] = %s, want %s", member, got[member].StringFixed(2), w)
		}
	}
	if err := got.CheckZeroSum(); err != nil {
		t.Errorf("balances do not sum to zero: %v", err)
	}
}

func setup(t *testing.T, members ...string) (*Manager, *models.Group, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	m := New(newTestStore(t), WithPublisher(pub))
	g, err := m.CreateGroup(context.Background(), "Trip", "usd", members)
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	return m, g, pub
}

func TestCreateGroup_Validation(t *testing.T) {
	m := New(newTestStore(t))
	ctx := context.Background()

	tests := []struct {
		name     string
		group    string
		currency string
		members  []string
	}{
		{"blank name", " ", "USD", []string{"a"}},
		{"bad currency", "Trip", "dollars", []string{"a"}},
		{"no members", "Trip", "USD", nil},
		{"duplicate member", "Trip", "USD", []string{"a", "a"}},
		{"blank member", "Trip", "USD", []string{"a", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.CreateGroup(ctx, tt.group, tt.currency, tt.members)
			if !ledger.IsValidation(err) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestAddExpense_EqualSplit(t *testing.T) {
	m, g, pub := setup(t, "Alice", "Bob", "Carol")
	ctx := context.Background()

	e, err := m.AddExpense(ctx, g.ID, ExpenseInput{
		Description: "Dinner",
		Amount:      d("100"),
		Owner:       "Alice",
		Split:       ledger.Equal{},
		Actor:       "Alice",
	})
	if err != nil {
		t.Fatalf("AddExpense failed: %v", err)
	}
	if e.Currency != "USD" || len(e.Details) != 3 {
		t.Errorf("expense = %+v", e)
	}

	assertBalances(t, m, g.ID, map[string]string{"Alice": "66.67", "Bob": "-33.33", "Carol": "-33.34"})

	if types := pub.types(); len(types) != 1 || types[0] != notify.ExpenseAdded {
		t.Errorf("events = %v, want [expense.added]", types)
	}
	if got := pub.last().Recipients; !slices.Equal(got, []string{"Alice", "Bob", "Carol"}) {
		t.Errorf("recipients = %v, want every group member", got)
	}
}

func TestAddExpense_PercentageRoundingDrift(t *testing.T) {
	m, g, _ := setup(t, "a", "b", "c", "d", "e", "f")
	ctx := context.Background()

	_, err := m.AddExpense(ctx, g.ID, ExpenseInput{
		Amount: d("1.00"),
		Owner:  "a",
		Split: ledger.Percentage{Percentages: map[string]decimal.Decimal{
			"a": d("16.66"), "b": d("16.66"), "c": d("16.67"),
			"d": d("16.67"), "e": d("16.67"), "f": d("16.67"),
		}},
	})
	if err != nil {
		t.Fatalf("AddExpense failed: %v", err)
	}

	// Five shares round up to 0.17, so f carries the remainder.
	assertBalances(t, m, g.ID, map[string]string{
		"a": "0.83", "b": "-0.17", "c": "-0.17", "d": "-0.17", "e": "-0.17", "f": "-0.15",
	})
}

func TestAddExpense_Rejections(t *testing.T) {
	m, g, pub := setup(t, "Alice", "Bob")
	ctx := context.Background()

	tests := []struct {
		name string
		in   ExpenseInput
	}{
		{"owner outside group", ExpenseInput{Amount: d("10"), Owner: "Mallory", Split: ledger.Equal{}}},
		{"member outside group", ExpenseInput{Amount: d("10"), Owner: "Alice", Members: []string{"Alice", "Mallory"}, Split: ledger.Equal{}}},
		{"zero amount", ExpenseInput{Amount: d("0"), Owner: "Alice", Split: ledger.Equal{}}},
		{"exact mismatch", ExpenseInput{Amount: d("10"), Owner: "Alice", Split: ledger.Exact{Amounts: map[string]decimal.Decimal{"Alice": d("3"), "Bob": d("3")}}}},
		{"percent mismatch", ExpenseInput{Amount: d("10"), Owner: "Alice", Split: ledger.Percentage{Percentages: map[string]decimal.Decimal{"Alice": d("50"), "Bob": d("40")}}}},
		{"missing split", ExpenseInput{Amount: d("10"), Owner: "Alice"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.AddExpense(ctx, g.ID, tt.in); !ledger.IsValidation(err) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}

	assertBalances(t, m, g.ID, map[string]string{"Alice": "0", "Bob": "0"})
	if len(pub.types()) != 0 {
		t.Errorf("rejected mutations published events: %v", pub.types())
	}

	if _, err := m.AddExpense(ctx, "missing", ExpenseInput{Amount: d("1"), Owner: "Alice", Split: ledger.Equal{}}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown group, got %v", err)
	}
}

func TestUpdateAndDeleteExpense(t *testing.T) {
	m, g, pub := setup(t, "Alice", "Bob", "Carol")
	ctx := context.Background()

	e, err := m.AddExpense(ctx, g.ID, ExpenseInput{Amount: d("90"), Owner: "Alice", Split: ledger.Equal{}})
	if err != nil {
		t.Fatalf("AddExpense failed: %v", err)
	}
	assertBalances(t, m, g.ID, map[string]string{"Alice": "60", "Bob": "-30", "Carol": "-30"})

	updated, err := m.UpdateExpense(ctx, g.ID, e.ID, ExpenseInput{
		Description: "Groceries",
		Amount:      d("50"),
		Owner:       "Bob",
		Members:     []string{"Alice", "Bob"},
		Split:       ledger.Exact{Amounts: map[string]decimal.Decimal{"Alice": d("20"), "Bob": d("30")}},
	})
	if err != nil {
		t.Fatalf("UpdateExpense failed: %v", err)
	}
	if updated.ID != e.ID {
		t.Errorf("update changed identity: %+v", updated)
	}
	assertBalances(t, m, g.ID, map[string]string{"Alice": "-20", "Bob": "20", "Carol": "0"})

	stored, err := m.GetExpense(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetExpense failed: %v", err)
	}
	if stored.Owner != "Bob" || stored.Split.Kind() != ledger.SplitExact || stored.Description != "Groceries" {
		t.Errorf("stored expense = %+v", stored)
	}

	// A rejected edit leaves the original expense applied.
	_, err = m.UpdateExpense(ctx, g.ID, e.ID, ExpenseInput{Amount: d("50"), Owner: "Mallory", Split: ledger.Equal{}})
	if !ledger.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	assertBalances(t, m, g.ID, map[string]string{"Alice": "-20", "Bob": "20", "Carol": "0"})

	if err := m.DeleteExpense(ctx, g.ID, e.ID, "Bob"); err != nil {
		t.Fatalf("DeleteExpense failed: %v", err)
	}
	assertBalances(t, m, g.ID, map[string]string{"Alice": "0", "Bob": "0", "Carol": "0"})

	if err := m.DeleteExpense(ctx, g.ID, e.ID, "Bob"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}

	want := []string{notify.ExpenseAdded, notify.ExpenseUpdated, notify.ExpenseDeleted}
	if fmt.Sprint(pub.types()) != fmt.Sprint(want) {
		t.Errorf("events = %v, want %v", pub.types(), want)
	}
}

func TestDeleteExpense_UsesStoredDetails(t *testing.T) {
	m, g, _ := setup(t, "Alice", "Bob", "Carol")
	ctx := context.Background()

	// 10 split 33.33/33.33/33.34 leaves a residual the owner absorbs.
	e, err := m.AddExpense(ctx, g.ID, ExpenseInput{
		Amount: d("10"),
		Owner:  "Alice",
		Split: ledger.Percentage{Percentages: map[string]decimal.Decimal{
			"Alice": d("33.33"), "Bob": d("33.33"), "Carol": d("33.34"),
		}},
	})
	if err != nil {
		t.Fatalf("AddExpense failed: %v", err)
	}
	if err := m.DeleteExpense(ctx, g.ID, e.ID, ""); err != nil {
		t.Fatalf("DeleteExpense failed: %v", err)
	}
	assertBalances(t, m, g.ID, map[string]string{"Alice": "0", "Bob": "0", "Carol": "0"})
}

func TestSettle(t *testing.T) {
	m, g, pub := setup(t, "A", "B")
	ctx := context.Background()

	if _, err := m.AddExpense(ctx, g.ID, ExpenseInput{
		Amount: d("30"), Owner: "A", Members: []string{"B"}, Split: ledger.Equal{},
	}); err != nil {
		t.Fatalf("AddExpense failed: %v", err)
	}
	assertBalances(t, m, g.ID, map[string]string{"A": "30", "B": "-30"})

	req := SettleRequest{GroupID: g.ID, Payer: "B", Payee: "A", Amount: d("30"), IdempotencyKey: "k1", Actor: "B"}
	s, err := m.Settle(ctx, req)
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if s.ID == "" || s.Currency != "USD" || s.Fingerprint == "" {
		t.Errorf("settlement = %+v", s)
	}
	assertBalances(t, m, g.ID, map[string]string{"A": "0", "B": "0"})
	if ev := pub.last(); ev.Type != notify.SettlementRecorded || !slices.Equal(ev.Recipients, []string{"B", "A"}) {
		t.Errorf("last event = %s to %v, want settlement.recorded to [B A]", ev.Type, ev.Recipients)
	}

	// Replaying the same key changes nothing.
	_, err = m.Settle(ctx, req)
	c, ok := ledger.AsConflict(err)
	if !ok || c.Kind != ledger.ConflictAlreadyApplied || c.ExistingID != s.ID {
		t.Fatalf("expected already-applied conflict for %s, got %v", s.ID, err)
	}
	assertBalances(t, m, g.ID, map[string]string{"A": "0", "B": "0"})

	// Same key, different content.
	reused := req
	reused.Amount = d("5")
	_, err = m.Settle(ctx, reused)
	if c, ok := ledger.AsConflict(err); !ok || c.Kind != ledger.ConflictKeyReused {
		t.Fatalf("expected key-reused conflict, got %v", err)
	}

	list, err := m.ListSettlements(ctx, g.ID)
	if err != nil {
		t.Fatalf("ListSettlements failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("Expected 1 settlement, got %d", len(list))
	}

	if types := pub.types(); len(types) != 2 || types[1] != notify.SettlementRecorded {
		t.Errorf("events = %v", types)
	}
}

func TestSettle_Validation(t *testing.T) {
	m, g, _ := setup(t, "A", "B")
	ctx := context.Background()

	tests := []struct {
		name string
		req  SettleRequest
	}{
		{"same party", SettleRequest{GroupID: g.ID, Payer: "A", Payee: "A", Amount: d("1"), IdempotencyKey: "v1"}},
		{"zero amount", SettleRequest{GroupID: g.ID, Payer: "B", Payee: "A", Amount: d("0"), IdempotencyKey: "v2"}},
		{"outsider", SettleRequest{GroupID: g.ID, Payer: "Z", Payee: "A", Amount: d("1"), IdempotencyKey: "v3"}},
		{"no key", SettleRequest{GroupID: g.ID, Payer: "B", Payee: "A", Amount: d("1")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Settle(ctx, tt.req); !ledger.IsValidation(err) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}

	// A rejected settlement does not burn its key.
	if _, err := m.GetSettlementByKey(ctx, "v3"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected key v3 to be unused, got %v", err)
	}
}

func TestSettle_ConcurrentReplays(t *testing.T) {
	m, g, _ := setup(t, "A", "B")
	ctx := context.Background()
	if _, err := m.AddExpense(ctx, g.ID, ExpenseInput{
		Amount: d("100"), Owner: "A", Members: []string{"B"}, Split: ledger.Equal{},
	}); err != nil {
		t.Fatalf("AddExpense failed: %v", err)
	}

	const workers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	var ok, replays int
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Settle(ctx, SettleRequest{
				GroupID: g.ID, Payer: "B", Payee: "A", Amount: d("10"), IdempotencyKey: "same-key",
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if c, isConflict := ledger.AsConflict(err); isConflict && c.Kind == ledger.ConflictAlreadyApplied {
				replays++
			} else {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 1 || replays != workers-1 {
		t.Errorf("ok=%d replays=%d, want 1 and %d", ok, replays, workers-1)
	}
	assertBalances(t, m, g.ID, map[string]string{"A": "90", "B": "-90"})
}

func TestConcurrentExpenses(t *testing.T) {
	m, g, _ := setup(t, "A", "B", "C")
	ctx := context.Background()

	const n = 30
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			owner := []string{"A", "B", "C"}[i%3]
			if _, err := m.AddExpense(ctx, g.ID, ExpenseInput{Amount: d("10"), Owner: owner, Split: ledger.Equal{}}); err != nil {
				t.Errorf("AddExpense %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	// Each member paid 100 in total; every expense split 3.33/3.33/3.34.
	expenses, err := m.ListExpenses(ctx, g.ID)
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if len(expenses) != n {
		t.Fatalf("Expected %d expenses, got %d", n, len(expenses))
	}
	assertBalances(t, m, g.ID, map[string]string{"A": "0.10", "B": "0.10", "C": "-0.20"})
	if m.locks.size() != 0 {
		t.Errorf("lock entries leaked: %d", m.locks.size())
	}
}

func TestMutation_CancelledContext(t *testing.T) {
	m, g, pub := setup(t, "A", "B")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.AddExpense(ctx, g.ID, ExpenseInput{Amount: d("10"), Owner: "A", Split: ledger.Equal{}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	assertBalances(t, m, g.ID, map[string]string{"A": "0", "B": "0"})
	if len(pub.types()) != 0 {
		t.Errorf("cancelled mutation published events: %v", pub.types())
	}
}

func TestMutation_LockTimeout(t *testing.T) {
	mt := metrics.Noop()
	store := newTestStore(t)
	m := New(store, WithLockTimeout(20*time.Millisecond), WithMetrics(mt))
	ctx := context.Background()
	g, err := m.CreateGroup(ctx, "Trip", "USD", []string{"A", "B"})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	release, err := m.locks.acquire(ctx, g.ID)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	_, err = m.AddExpense(ctx, g.ID, ExpenseInput{Amount: d("10"), Owner: "A", Split: ledger.Equal{}})
	release()

	c, ok := ledger.AsConflict(err)
	if !ok || c.Kind != ledger.ConflictStale {
		t.Fatalf("expected stale conflict, got %v", err)
	}
	if got := testutil.ToFloat64(mt.Mutations.WithLabelValues("add_expense", metrics.OutcomeConflict)); got != 1 {
		t.Errorf("mutations_total{add_expense,conflict} = %v, want 1", got)
	}

	// Other groups are not blocked by a held lock.
	other, err := m.CreateGroup(ctx, "Other", "USD", []string{"A", "B"})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	release, err = m.locks.acquire(ctx, g.ID)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	defer release()
	if _, err := m.AddExpense(ctx, other.ID, ExpenseInput{Amount: d("10"), Owner: "A", Split: ledger.Equal{}}); err != nil {
		t.Errorf("AddExpense on another group failed: %v", err)
	}
}

func TestMembers(t *testing.T) {
	m, g, _ := setup(t, "A", "B")
	ctx := context.Background()

	if _, err := m.AddMembers(ctx, g.ID, []string{"B"}); !ledger.IsValidation(err) {
		t.Errorf("expected ValidationError for existing member, got %v", err)
	}
	got, err := m.AddMembers(ctx, g.ID, []string{"C", "D"})
	if err != nil {
		t.Fatalf("AddMembers failed: %v", err)
	}
	if len(got.Members) != 4 || !got.Balances["D"].IsZero() {
		t.Errorf("group after AddMembers = %+v", got)
	}

	if _, err := m.AddExpense(ctx, g.ID, ExpenseInput{Amount: d("10"), Owner: "A", Members: []string{"B"}, Split: ledger.Equal{}}); err != nil {
		t.Fatalf("AddExpense failed: %v", err)
	}

	tests := []struct {
		name   string
		member string
	}{
		{"non-zero balance", "B"},
		{"not a member", "Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.RemoveMember(ctx, g.ID, tt.member); !ledger.IsValidation(err) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}

	// Settled up but still named by an expense.
	if _, err := m.Settle(ctx, SettleRequest{GroupID: g.ID, Payer: "B", Payee: "A", Amount: d("10"), IdempotencyKey: "m1"}); err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if _, err := m.RemoveMember(ctx, g.ID, "B"); !ledger.IsValidation(err) {
		t.Errorf("expected ValidationError for referenced member, got %v", err)
	}

	got, err = m.RemoveMember(ctx, g.ID, "D")
	if err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}
	if got.IsMember("D") || got.Balances.Has("D") {
		t.Errorf("D still present: %+v", got)
	}
}

func TestDeleteGroup(t *testing.T) {
	m, g, _ := setup(t, "A", "B")
	ctx := context.Background()

	if _, err := m.Settle(ctx, SettleRequest{GroupID: g.ID, Payer: "B", Payee: "A", Amount: d("1"), IdempotencyKey: "dg"}); err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if err := m.DeleteGroup(ctx, g.ID); err != nil {
		t.Fatalf("DeleteGroup failed: %v", err)
	}
	if _, err := m.GetGroup(ctx, g.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.GetSettlementByKey(ctx, "dg"); err != nil {
		t.Errorf("settlement history lost: %v", err)
	}
}

func TestBalanceSheet(t *testing.T) {
	m, g, _ := setup(t, "A", "B", "C", "D")
	ctx := context.Background()

	for _, in := range []ExpenseInput{
		{Amount: d("40"), Owner: "A", Members: []string{"B"}, Split: ledger.Equal{}},
		{Amount: d("20"), Owner: "C", Members: []string{"D"}, Split: ledger.Equal{}},
	} {
		if _, err := m.AddExpense(ctx, g.ID, in); err != nil {
			t.Fatalf("AddExpense failed: %v", err)
		}
	}

	sheet, err := m.BalanceSheet(ctx, g.ID)
	if err != nil {
		t.Fatalf("BalanceSheet failed: %v", err)
	}
	if len(sheet.Transfers) != 2 {
		t.Fatalf("Transfers = %v, want 2", sheet.Transfers)
	}
	for _, tr := range sheet.Transfers {
		if !(tr.From == "B" && tr.To == "A" && tr.Amount.Equal(d("40"))) &&
			!(tr.From == "D" && tr.To == "C" && tr.Amount.Equal(d("20"))) {
			t.Errorf("unexpected transfer %+v", tr)
		}
	}

	transfers, err := m.Simplify(ctx, g.ID)
	if err != nil {
		t.Fatalf("Simplify failed: %v", err)
	}
	if len(transfers) != 2 {
		t.Errorf("Simplify = %v", transfers)
	}
}

func TestMemberSummary(t *testing.T) {
	rates, err := fx.ParseRates("USD", "EUR=0.5")
	if err != nil {
		t.Fatalf("ParseRates failed: %v", err)
	}
	m := New(newTestStore(t), WithRates(rates))
	ctx := context.Background()

	usd, err := m.CreateGroup(ctx, "Home", "USD", []string{"A", "B"})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	eur, err := m.CreateGroup(ctx, "Paris", "EUR", []string{"A", "C"})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if _, err := m.AddExpense(ctx, usd.ID, ExpenseInput{Amount: d("10"), Owner: "A", Members: []string{"B"}, Split: ledger.Equal{}}); err != nil {
		t.Fatalf("AddExpense failed: %v", err)
	}
	if _, err := m.AddExpense(ctx, eur.ID, ExpenseInput{Amount: d("4"), Owner: "C", Members: []string{"A"}, Split: ledger.Equal{}}); err != nil {
		t.Fatalf("AddExpense failed: %v", err)
	}

	summary, err := m.MemberSummary(ctx, "A", "")
	if err != nil {
		t.Fatalf("MemberSummary failed: %v", err)
	}
	// +10 USD and -4 EUR (= -8 USD).
	if summary.Currency != "USD" || len(summary.Groups) != 2 || !summary.Total.Equal(d("2")) {
		t.Errorf("summary = %+v", summary)
	}

	if _, err := m.MemberSummary(ctx, "A", "JPY"); !ledger.IsValidation(err) {
		t.Errorf("expected ValidationError for unknown currency, got %v", err)
	}

	noRates := New(newTestStore(t))
	if _, err := noRates.MemberSummary(ctx, "A", ""); !ledger.IsValidation(err) {
		t.Errorf("expected ValidationError without currency, got %v", err)
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("g", "B", "A", d("10"))
	if a != Fingerprint("g", "B", "A", d("10.00")) {
		t.Error("fingerprint depends on amount formatting")
	}
	for _, other := range []string{
		Fingerprint("g", "A", "B", d("10")),
		Fingerprint("h", "B", "A", d("10")),
		Fingerprint("g", "B", "A", d("10.01")),
	} {
		if other == a {
			t.Error("distinct requests share a fingerprint")
		}
	}
}

func TestGroupLocks(t *testing.T) {
	l := newGroupLocks()
	ctx := context.Background()

	release, err := l.acquire(ctx, "g")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if _, err := l.acquire(waitCtx, "g"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded while held, got %v", err)
	}

	releaseOther, err := l.acquire(ctx, "other")
	if err != nil {
		t.Fatalf("acquire on another group failed: %v", err)
	}
	releaseOther()

	release()
	if l.size() != 0 {
		t.Errorf("size after release = %d, want 0", l.size())
	}
}
