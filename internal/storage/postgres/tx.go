package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmynk/groupledger/internal/ledger"
	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/internal/storage"
)

var _ storage.GroupTx = (*groupTx)(nil)

type groupTx struct {
	tx    pgx.Tx
	group *models.Group
}

func (g *groupTx) Group() *models.Group {
	return g.group
}

func (g *groupTx) SaveBalances(ctx context.Context, balances ledger.BalanceMap) error {
	batch := &pgx.Batch{}
	members := balances.Members()
	for _, member := range members {
		batch.Queue(
			"UPDATE group_members SET balance = $1 WHERE group_id = $2 AND member = $3",
			formatAmount(balances[member]), g.group.ID, member,
		)
	}

	results := g.tx.SendBatch(ctx, batch)
	for _, member := range members {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return fmt.Errorf("failed to save balance: %w", err)
		}
		if tag.RowsAffected() == 0 {
			results.Close()
			return fmt.Errorf("member %s: %w", member, storage.ErrNotFound)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to save balances: %w", err)
	}

	g.group.Balances = balances.Clone()
	return nil
}

func (g *groupTx) AddMembers(ctx context.Context, members []string) error {
	var next int
	err := g.tx.QueryRow(ctx,
		"SELECT COALESCE(MAX(position) + 1, 0) FROM group_members WHERE group_id = $1",
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
	tag, err := g.tx.Exec(ctx,
		"DELETE FROM group_members WHERE group_id = $1 AND member = $2",
		g.group.ID, member,
	)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if tag.RowsAffected() == 0 {
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
	var exists bool
	err := g.tx.QueryRow(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM expenses e
		     WHERE e.group_id = $1 AND (e.owner = $2 OR EXISTS (
		         SELECT 1 FROM expense_splits s WHERE s.expense_id = e.id AND s.member = $2)))`,
		g.group.ID, member,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check member references: %w", err)
	}
	return exists, nil
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
	tag, err := g.tx.Exec(ctx,
		"DELETE FROM expenses WHERE id = $1 AND group_id = $2",
		expenseID, g.group.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	return nil
}

// InsertSettlement runs under a savepoint so a duplicate key leaves the
// surrounding transaction usable.
func (g *groupTx) InsertSettlement(ctx context.Context, settlement *models.Settlement) error {
	settlement.GroupID = g.group.ID

	sp, err := g.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin savepoint: %w", err)
	}
	defer sp.Rollback(ctx)

	if err := insertSettlement(ctx, sp, settlement); err != nil {
		return err
	}
	return sp.Commit(ctx)
}
