package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/groupledger/internal/ledger"
	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/internal/storage"
)

var _ storage.GroupTx = (*groupTx)(nil)

// groupTx is the storage.GroupTx handed to InGroupTx callbacks.
type groupTx struct {
	tx    *sql.Tx
	group *models.Group
}

func (g *groupTx) Group() *models.Group {
	return g.group
}

func (g *groupTx) SaveBalances(ctx context.Context, balances ledger.BalanceMap) error {
	for member, balance := range balances {
		result, err := g.tx.ExecContext(ctx,
			"UPDATE group_members SET balance = ? WHERE group_id = ? AND member = ?",
			formatAmount(balance), g.group.ID, member,
		)
		if err != nil {
			return fmt.Errorf("failed to save balance: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check updated rows: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("member %s: %w", member, storage.ErrNotFound)
		}
	}
	g.group.Balances = balances.Clone()
	return nil
}

func (g *groupTx) AddMembers(ctx context.Context, members []string) error {
	var next int
	err := g.tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(position) + 1, 0) FROM group_members WHERE group_id = ?",
		g.group.ID,
	).Scan(&next)
	if err != nil {
		return fmt.Errorf("failed to get next member position: %w", err)
	}
	if err := insertMembers(ctx, g.tx, g.group.ID, members, next); err != nil {
		return err
	}
	for _, m := range members {
		g.group.Members = append(g.group.Members, m)
		g.group.Balances[m] = decimal.Zero
	}
	return nil
}

func (g *groupTx) RemoveMember(ctx context.Context, member string) error {
	result, err := g.tx.ExecContext(ctx,
		"DELETE FROM group_members WHERE group_id = ? AND member = ?",
		g.group.ID, member,
	)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("member %s: %w", member, storage.ErrNotFound)
	}

	members := g.group.Members[:0]
	for _, m := range g.group.Members {
		if m != member {
			members = append(members, m)
		}
	}
	g.group.Members = members
	delete(g.group.Balances, member)
	return nil
}

func (g *groupTx) MemberReferenced(ctx context.Context, member string) (bool, error) {
	var exists int
	err := g.tx.QueryRowContext(ctx,
		`SELECT 1 FROM expenses e
		 WHERE e.group_id = ? AND (e.owner = ? OR EXISTS (
		     SELECT 1 FROM expense_splits s WHERE s.expense_id = e.id AND s.member = ?))
		 LIMIT 1`,
		g.group.ID, member, member,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check member references: %w", err)
	}
	return true, nil
}

func (g *groupTx) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	expense, err := getExpense(ctx, g.tx, expenseID)
	if err != nil {
		return nil, err
	}
	if expense.GroupID != g.group.ID {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	return expense, nil
}

func (g *groupTx) InsertExpense(ctx context.Context, expense *models.Expense) error {
	expense.GroupID = g.group.ID
	return insertExpense(ctx, g.tx, expense)
}

func (g *groupTx) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	expense.GroupID = g.group.ID
	return updateExpense(ctx, g.tx, expense)
}

func (g *groupTx) DeleteExpense(ctx context.Context, expenseID string) error {
	result, err := g.tx.ExecContext(ctx,
		"DELETE FROM expenses WHERE id = ? AND group_id = ?",
		expenseID, g.group.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	return nil
}

func (g *groupTx) InsertSettlement(ctx context.Context, settlement *models.Settlement) error {
	settlement.GroupID = g.group.ID
	return insertSettlement(ctx, g.tx, settlement)
}
