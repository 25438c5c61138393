package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmynk/groupledger/internal/ledger"
	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/internal/storage"
)

// GetExpense retrieves an expense by ID, including its split details.
func (s *PostgresStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	return getExpense(ctx, s.pool, expenseID)
}

// ListExpensesByGroup retrieves all expenses for a group, newest first.
func (s *PostgresStore) ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id FROM expenses WHERE group_id = $1 ORDER BY created_at DESC, id",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses by group: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan expense ids: %w", err)
	}

	expenses := make([]*models.Expense, 0, len(ids))
	for _, id := range ids {
		expense, err := getExpense(ctx, s.pool, id)
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

	err := q.QueryRow(ctx,
		`SELECT id, group_id, description, amount::text, currency, owner, split_type, created_by, created_at, updated_at
		 FROM expenses WHERE id = $1`,
		expenseID,
	).Scan(&expense.ID, &expense.GroupID, &expense.Description, &amount, &expense.Currency,
		&expense.Owner, &splitType, &expense.CreatedBy, &expense.CreatedAt, &expense.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	if expense.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx,
		"SELECT member, owed::text, raw_value::text FROM expense_splits WHERE expense_id = $1 ORDER BY position",
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get expense splits: %w", err)
	}
	defer rows.Close()

	raw := make(map[string]decimal.Decimal)
	for rows.Next() {
		var member, owed string
		var rawValue *string
		if err := rows.Scan(&member, &owed, &rawValue); err != nil {
			return nil, fmt.Errorf("failed to scan expense split: %w", err)
		}
		v, err := parseAmount(owed)
		if err != nil {
			return nil, err
		}
		expense.Members = append(expense.Members, member)
		expense.Details = append(expense.Details, ledger.SplitDetail{Member: member, Owed: v})
		if rawValue != nil {
			if raw[member], err = parseAmount(*rawValue); err != nil {
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
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}
	expense.UpdatedAt = expense.CreatedAt

	_, err := q.Exec(ctx,
		`INSERT INTO expenses (id, group_id, description, amount, currency, owner, split_type, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
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

	tag, err := q.Exec(ctx,
		`UPDATE expenses SET description = $1, amount = $2, owner = $3, split_type = $4, updated_at = $5
		 WHERE id = $6 AND group_id = $7`,
		expense.Description, formatAmount(expense.Amount), expense.Owner,
		string(expense.Split.Kind()), expense.UpdatedAt, expense.ID, expense.GroupID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("expense %s: %w", expense.ID, storage.ErrNotFound)
	}

	if _, err := q.Exec(ctx, "DELETE FROM expense_splits WHERE expense_id = $1", expense.ID); err != nil {
		return fmt.Errorf("failed to delete old expense splits: %w", err)
	}
	return insertSplits(ctx, q, expense)
}

func insertSplits(ctx context.Context, q querier, expense *models.Expense) error {
	raw := ledger.RawValues(expense.Split)
	for i, d := range expense.Details {
		var rawValue *string
		if v, ok := raw[d.Member]; ok {
			s := v.String()
			rawValue = &s
		}
		_, err := q.Exec(ctx,
			"INSERT INTO expense_splits (expense_id, position, member, owed, raw_value) VALUES ($1, $2, $3, $4, $5)",
			expense.ID, i, d.Member, formatAmount(d.Owed), rawValue,
		)
		if err != nil {
			return fmt.Errorf("failed to insert expense split: %w", err)
		}
	}
	return nil
}
