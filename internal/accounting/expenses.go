package accounting

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/groupledger/internal/ledger"
	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/internal/notify"
	"github.com/mmynk/groupledger/internal/storage"
)

// ExpenseInput describes an expense to add, or the new state of one being
// edited.
type ExpenseInput struct {
	Description string
	Amount      decimal.Decimal
	// Owner is the member who paid.
	Owner string
	// Members share the cost, in split order. Empty means every group member.
	Members []string
	Split   ledger.Split
	// Actor is the member recording the change.
	Actor string
}

// AddExpense computes the split for in and applies it to the group's
// balances.
func (m *Manager) AddExpense(ctx context.Context, groupID string, in ExpenseInput) (*models.Expense, error) {
	var (
		expense    *models.Expense
		recipients []string
	)
	err := m.mutate(ctx, "add_expense", groupID, func(ctx context.Context, tx storage.GroupTx) error {
		g := tx.Group()
		e, err := buildExpense(g, in)
		if err != nil {
			return err
		}
		e.CreatedBy = in.Actor

		next, err := ledger.ApplySplit(g.Balances, e.Owner, e.Amount, e.Details, ledger.Apply)
		if err != nil {
			return err
		}
		if err := tx.InsertExpense(ctx, e); err != nil {
			return err
		}
		if err := saveBalances(ctx, tx, next); err != nil {
			return err
		}
		expense = e
		recipients = append([]string(nil), g.Members...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.publish(notify.NewEvent(notify.ExpenseAdded, groupID, expense.ID, in.Actor, recipients, expenseData(expense)))
	return expense, nil
}

// UpdateExpense reverses the stored expense with its stored split details,
// then applies the edited one. Both steps commit together or not at all.
func (m *Manager) UpdateExpense(ctx context.Context, groupID, expenseID string, in ExpenseInput) (*models.Expense, error) {
	var (
		expense    *models.Expense
		recipients []string
	)
	err := m.mutate(ctx, "update_expense", groupID, func(ctx context.Context, tx storage.GroupTx) error {
		g := tx.Group()
		old, err := tx.GetExpense(ctx, expenseID)
		if err != nil {
			return err
		}

		reversed, err := ledger.ApplySplit(g.Balances, old.Owner, old.Amount, old.Details, ledger.Reverse)
		if err != nil {
			return err
		}

		e, err := buildExpense(g, in)
		if err != nil {
			return err
		}
		e.ID = old.ID
		e.CreatedBy = old.CreatedBy
		e.CreatedAt = old.CreatedAt

		next, err := ledger.ApplySplit(reversed, e.Owner, e.Amount, e.Details, ledger.Apply)
		if err != nil {
			return err
		}
		if err := tx.UpdateExpense(ctx, e); err != nil {
			return err
		}
		if err := saveBalances(ctx, tx, next); err != nil {
			return err
		}
		expense = e
		recipients = append([]string(nil), g.Members...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.publish(notify.NewEvent(notify.ExpenseUpdated, groupID, expense.ID, in.Actor, recipients, expenseData(expense)))
	return expense, nil
}

// DeleteExpense reverses an expense using its stored split details and
// removes it.
func (m *Manager) DeleteExpense(ctx context.Context, groupID, expenseID, actor string) error {
	var (
		deleted    *models.Expense
		recipients []string
	)
	err := m.mutate(ctx, "delete_expense", groupID, func(ctx context.Context, tx storage.GroupTx) error {
		old, err := tx.GetExpense(ctx, expenseID)
		if err != nil {
			return err
		}
		next, err := ledger.ApplySplit(tx.Group().Balances, old.Owner, old.Amount, old.Details, ledger.Reverse)
		if err != nil {
			return err
		}
		if err := tx.DeleteExpense(ctx, expenseID); err != nil {
			return err
		}
		if err := saveBalances(ctx, tx, next); err != nil {
			return err
		}
		deleted = old
		recipients = append([]string(nil), tx.Group().Members...)
		return nil
	})
	if err != nil {
		return err
	}

	m.publish(notify.NewEvent(notify.ExpenseDeleted, groupID, expenseID, actor, recipients, expenseData(deleted)))
	return nil
}

// GetExpense returns a stored expense.
func (m *Manager) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	return m.store.GetExpense(ctx, expenseID)
}

// ListExpenses returns a group's expenses, newest first.
func (m *Manager) ListExpenses(ctx context.Context, groupID string) ([]*models.Expense, error) {
	if _, err := m.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return m.store.ListExpensesByGroup(ctx, groupID)
}

// buildExpense validates in against g and computes its split details.
func buildExpense(g *models.Group, in ExpenseInput) (*models.Expense, error) {
	if !g.IsMember(in.Owner) {
		return nil, ledger.Validationf("owner", "%q is not a member of the group", in.Owner)
	}
	members := in.Members
	if len(members) == 0 {
		members = g.Members
	}
	for _, member := range members {
		if !g.IsMember(member) {
			return nil, ledger.Validationf("members", "%q is not a member of the group", member)
		}
	}

	details, err := ledger.ComputeSplit(in.Amount, members, in.Split)
	if err != nil {
		return nil, err
	}

	return &models.Expense{
		GroupID:     g.ID,
		Description: strings.TrimSpace(in.Description),
		Amount:      ledger.Round2(in.Amount),
		Currency:    g.Currency,
		Owner:       in.Owner,
		Members:     append([]string(nil), members...),
		Split:       in.Split,
		Details:     details,
	}, nil
}

func expenseData(e *models.Expense) map[string]any {
	owed := make(map[string]any, len(e.Details))
	for _, d := range e.Details {
		owed[d.Member] = d.Owed.StringFixed(2)
	}
	return map[string]any{
		"description": e.Description,
		"amount":      e.Amount.StringFixed(2),
		"currency":    e.Currency,
		"owner":       e.Owner,
		"split_type":  string(e.Split.Kind()),
		"owed":        owed,
	}
}
