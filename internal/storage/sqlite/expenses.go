package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/groupledger/internal/ledger"
	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/internal/storage"
)

// GetExpense retrieves an expense by ID, including its split details.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	return getExpense(ctx, s.db, expenseID)
}

// ListExpensesByGroup retrieves all expenses for a group, newest first.
func (s *SQLiteStore) ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM expenses WHERE group_id = ? ORDER BY created_at DESC, id",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses by group: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan expense id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	expenses := make([]*models.Expense, 0, len(ids))
	for _, id := range ids {
		expense, err := getExpense(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, expense)
	}
	return expenses, nil
}

func getExpense(ctx context.Context, q querier, expenseID string) (*models.Expense, error) {
	expense := &models.Expense{}
	var amount, splitType string

	err := q.QueryRowContext(ctx,
		`SELECT id, group_id, description, amount, currency, owner, split_type, created_by, created_at, updated_at
		 FROM expenses WHERE id = ?`,
		expenseID,
	).Scan(&expense.ID, &expense.GroupID, &expense.Description, &amount, &expense.Currency,
		&expense.Owner, &splitType, &expense.CreatedBy, &expense.CreatedAt, &expense.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	if expense.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx,
		"SELECT member, owed, raw_value FROM expense_splits WHERE expense_id = ? ORDER BY position",
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get expense splits: %w", err)
	}
	defer rows.Close()

	raw := make(map[string]decimal.Decimal)
	for rows.Next() {
		var member, owed string
		var rawValue sql.NullString
		if err := rows.Scan(&member, &owed, &rawValue); err != nil {
			return nil, fmt.Errorf("failed to scan expense split: %w", err)
		}
		v, err := parseAmount(owed)
		if err != nil {
			return nil, err
		}
		expense.Members = append(expense.Members, member)
		expense.Details = append(expense.Details, ledger.SplitDetail{Member: member, Owed: v})
		if rawValue.Valid {
			if raw[member], err = parseAmount(rawValue.String); err != nil {
				return nil, err
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expense splits: %w", err)
	}

	kind, err := ledger.ParseSplitKind(splitType)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored split type: %w", err)
	}
	if expense.Split, err = ledger.NewSplit(kind, raw); err != nil {
		return nil, fmt.Errorf("failed to rebuild split: %w", err)
	}

	return expense, nil
}

func insertExpense(ctx context.Context, q querier, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	if expense.CreatedAt == 0 {
		expense.CreatedAt = now
	}
	expense.UpdatedAt = expense.CreatedAt

	_, err := q.ExecContext(ctx,
		`INSERT INTO expenses (id, group_id, description, amount, currency, owner, split_type, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.GroupID, expense.Description, formatAmount(expense.Amount), expense.Currency,
		expense.Owner, string(expense.Split.Kind()), expense.CreatedBy, expense.CreatedAt, expense.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	return insertSplits(ctx, q, expense)
}

func updateExpense(ctx context.Context, q querier, expense *models.Expense) error {
	expense.UpdatedAt = time.Now().Unix()

	result, err := q.ExecContext(ctx,
		`UPDATE expenses SET description = ?, amount = ?, owner = ?, split_type = ?, updated_at = ?
		 WHERE id = ? AND group_id = ?`,
		expense.Description, formatAmount(expense.Amount), expense.Owner,
		string(expense.Split.Kind()), expense.UpdatedAt, expense.ID, expense.GroupID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check updated rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %s: %w", expense.ID, storage.ErrNotFound)
	}

	if _, err := q.ExecContext(ctx, "DELETE FROM expense_splits WHERE expense_id = ?", expense.ID); err != nil {
		return fmt.Errorf("failed to delete old expense splits: %w", err)
	}
	return insertSplits(ctx, q, expense)
}

func insertSplits(ctx context.Context, q querier, expense *models.Expense) error {
	raw := ledger.RawValues(expense.Split)
	for i, d := range expense.Details {
		var rawValue any
		if v, ok := raw[d.Member]; ok {
			rawValue = v.String()
		}
		_, err := q.ExecContext(ctx,
			"INSERT INTO expense_splits (expense_id, position, member, owed, raw_value) VALUES (?, ?, ?, ?, ?)",
			expense.ID, i, d.Member, formatAmount(d.Owed), rawValue,
		)
		if err != nil {
			return fmt.Errorf("failed to insert expense split: %w", err)
		}
	}
	return nil
}
