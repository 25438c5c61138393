// Package storetest holds behaviour tests shared by every storage.Store
// backend.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/groupledger/internal/ledger"
	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/internal/storage"
)

// Run exercises store against the storage.Store contract.
func Run(t *testing.T, store storage.Store) {
	ctx := context.Background()

	t.Run("CreateGroup and GetGroup", func(t *testing.T) {
		group := newGroup(t, ctx, store, "Alice", "Bob", "Carol")

		if group.ID == "" {
			t.Error("Expected group ID to be generated")
		}
		if group.CreatedAt == 0 {
			t.Error("Expected CreatedAt to be set")
		}

		got, err := store.GetGroup(ctx, group.ID)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if got.Name != group.Name || got.Currency != "USD" {
			t.Errorf("GetGroup = %+v, want name %q currency USD", got, group.Name)
		}
		if len(got.Members) != 3 || got.Members[0] != "Alice" || got.Members[2] != "Carol" {
			t.Errorf("Members = %v, want join order preserved", got.Members)
		}
		for _, m := range got.Members {
			if !got.Balances[m].IsZero() {
				t.Errorf("Balance[%s] = %s, want 0", m, got.Balances[m])
			}
		}
	})

	t.Run("GetGroup unknown returns ErrNotFound", func(t *testing.T) {
		_, err := store.GetGroup(ctx, uuid.New().String())
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ListGroupsByMember", func(t *testing.T) {
		member := "member-" + uuid.New().String()
		g1 := newGroup(t, ctx, store, member, "Bob")
		g2 := newGroup(t, ctx, store, "Bob", member)
		newGroup(t, ctx, store, "Bob", "Carol")

		groups, err := store.ListGroupsByMember(ctx, member)
		if err != nil {
			t.Fatalf("ListGroupsByMember failed: %v", err)
		}
		if len(groups) != 2 {
			t.Fatalf("Expected 2 groups, got %d", len(groups))
		}
		ids := map[string]bool{groups[0].ID: true, groups[1].ID: true}
		if !ids[g1.ID] || !ids[g2.ID] {
			t.Errorf("ListGroupsByMember returned %v, want %s and %s", ids, g1.ID, g2.ID)
		}

		all, err := store.ListGroups(ctx)
		if err != nil {
			t.Fatalf("ListGroups failed: %v", err)
		}
		if len(all) < 3 {
			t.Errorf("ListGroups returned %d groups, want at least 3", len(all))
		}
	})

	t.Run("expense round trip inside InGroupTx", func(t *testing.T) {
		group := newGroup(t, ctx, store, "Alice", "Bob", "Carol")
		split := ledger.Percentage{Percentages: map[string]decimal.Decimal{
			"Alice": decimal.NewFromInt(50),
			"Bob":   decimal.RequireFromString("25.5"),
			"Carol": decimal.RequireFromString("24.5"),
		}}
		details, err := ledger.ComputeSplit(decimal.NewFromInt(200), group.Members, split)
		if err != nil {
			t.Fatalf("ComputeSplit failed: %v", err)
		}
		expense := &models.Expense{
			Description: "Cabin",
			Amount:      decimal.NewFromInt(200),
			Currency:    "USD",
			Owner:       "Alice",
			Members:     group.Members,
			Split:       split,
			Details:     details,
			CreatedBy:   "Alice",
		}

		err = store.InGroupTx(ctx, group.ID, func(ctx context.Context, tx storage.GroupTx) error {
			next, err := ledger.ApplySplit(tx.Group().Balances, expense.Owner, expense.Amount, expense.Details, ledger.Apply)
			if err != nil {
				return err
			}
			if err := tx.InsertExpense(ctx, expense); err != nil {
				return err
			}
			return tx.SaveBalances(ctx, next)
		})
		if err != nil {
			t.Fatalf("InGroupTx failed: %v", err)
		}
		if expense.ID == "" || expense.GroupID != group.ID {
			t.Errorf("expense ID/GroupID not populated: %+v", expense)
		}

		got, err := store.GetExpense(ctx, expense.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		if got.Split.Kind() != ledger.SplitPercentage {
			t.Errorf("Split kind = %s, want percentage", got.Split.Kind())
		}
		if raw := ledger.RawValues(got.Split); !raw["Bob"].Equal(decimal.RequireFromString("25.5")) {
			t.Errorf("raw percentage for Bob = %s, want 25.5", raw["Bob"])
		}
		if len(got.Details) != 3 || !got.Details[1].Owed.Equal(decimal.NewFromInt(51)) {
			t.Errorf("Details = %v, want Bob owing 51", got.Details)
		}

		reloaded, err := store.GetGroup(ctx, group.ID)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if !reloaded.Balances["Alice"].Equal(decimal.NewFromInt(100)) {
			t.Errorf("Alice balance = %s, want 100", reloaded.Balances["Alice"])
		}

		expenses, err := store.ListExpensesByGroup(ctx, group.ID)
		if err != nil {
			t.Fatalf("ListExpensesByGroup failed: %v", err)
		}
		if len(expenses) != 1 {
			t.Errorf("Expected 1 expense, got %d", len(expenses))
		}
	})

	t.Run("InGroupTx rolls back on error", func(t *testing.T) {
		group := newGroup(t, ctx, store, "Alice", "Bob")
		boom := errors.New("boom")

		err := store.InGroupTx(ctx, group.ID, func(ctx context.Context, tx storage.GroupTx) error {
			b := tx.Group().Balances.Clone()
			b["Alice"] = decimal.NewFromInt(5)
			b["Bob"] = decimal.NewFromInt(-5)
			if err := tx.SaveBalances(ctx, b); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}

		got, err := store.GetGroup(ctx, group.ID)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if !got.Balances.IsSettled() {
			t.Errorf("balances after rollback = %v, want all zero", got.Balances)
		}
	})

	t.Run("InGroupTx unknown group", func(t *testing.T) {
		err := store.InGroupTx(ctx, uuid.New().String(), func(ctx context.Context, tx storage.GroupTx) error {
			t.Error("callback should not run")
			return nil
		})
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("settlement idempotency key is unique", func(t *testing.T) {
		group := newGroup(t, ctx, store, "Alice", "Bob")
		key := uuid.New().String()
		insert := func() error {
			return store.InGroupTx(ctx, group.ID, func(ctx context.Context, tx storage.GroupTx) error {
				return tx.InsertSettlement(ctx, &models.Settlement{
					Payer:          "Bob",
					Payee:          "Alice",
					Amount:         decimal.RequireFromString("12.50"),
					Currency:       "USD",
					IdempotencyKey: key,
					Fingerprint:    "fp",
					CreatedBy:      "Bob",
					Note:           "lunch",
				})
			})
		}

		if err := insert(); err != nil {
			t.Fatalf("first insert failed: %v", err)
		}
		if err := insert(); !errors.Is(err, storage.ErrDuplicateKey) {
			t.Fatalf("expected ErrDuplicateKey, got %v", err)
		}

		got, err := store.GetSettlementByKey(ctx, key)
		if err != nil {
			t.Fatalf("GetSettlementByKey failed: %v", err)
		}
		if got.Payer != "Bob" || got.Note != "lunch" || !got.Amount.Equal(decimal.RequireFromString("12.5")) {
			t.Errorf("GetSettlementByKey = %+v", got)
		}

		list, err := store.ListSettlementsByGroup(ctx, group.ID)
		if err != nil {
			t.Fatalf("ListSettlementsByGroup failed: %v", err)
		}
		if len(list) != 1 {
			t.Errorf("Expected 1 settlement, got %d", len(list))
		}

		if _, err := store.GetSettlementByKey(ctx, "missing-"+key); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("members can be added and removed", func(t *testing.T) {
		group := newGroup(t, ctx, store, "Alice", "Bob")

		err := store.InGroupTx(ctx, group.ID, func(ctx context.Context, tx storage.GroupTx) error {
			if err := tx.RemoveMember(ctx, "Alice"); err != nil {
				return err
			}
			return tx.AddMembers(ctx, []string{"Dan", "Eve"})
		})
		if err != nil {
			t.Fatalf("InGroupTx failed: %v", err)
		}

		got, err := store.GetGroup(ctx, group.ID)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		want := []string{"Bob", "Dan", "Eve"}
		if fmt.Sprint(got.Members) != fmt.Sprint(want) {
			t.Errorf("Members = %v, want %v", got.Members, want)
		}
		if got.Balances.Has("Alice") {
			t.Error("removed member still has a balance entry")
		}
	})

	t.Run("DeleteGroup keeps settlements", func(t *testing.T) {
		group := newGroup(t, ctx, store, "Alice", "Bob")
		err := store.InGroupTx(ctx, group.ID, func(ctx context.Context, tx storage.GroupTx) error {
			return tx.InsertSettlement(ctx, &models.Settlement{
				Payer: "Bob", Payee: "Alice", Amount: decimal.NewFromInt(1), Currency: "USD",
				IdempotencyKey: uuid.New().String(), Fingerprint: "fp", CreatedBy: "Bob",
			})
		})
		if err != nil {
			t.Fatalf("InsertSettlement failed: %v", err)
		}

		if err := store.DeleteGroup(ctx, group.ID); err != nil {
			t.Fatalf("DeleteGroup failed: %v", err)
		}
		if _, err := store.GetGroup(ctx, group.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if err := store.DeleteGroup(ctx, group.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}

		list, err := store.ListSettlementsByGroup(ctx, group.ID)
		if err != nil {
			t.Fatalf("ListSettlementsByGroup failed: %v", err)
		}
		if len(list) != 1 {
			t.Errorf("Expected settlement history to survive, got %d", len(list))
		}
	})
}

func newGroup(t *testing.T, ctx context.Context, store storage.Store, members ...string) *models.Group {
	t.Helper()
	group := &models.Group{
		Name:     "Group " + uuid.New().String()[:8],
		Currency: "USD",
		Members:  members,
	}
	if err := store.CreateGroup(ctx, group); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	return group
}
