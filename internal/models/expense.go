package models

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/groupledger/internal/ledger"
)

// Expense is a cost fronted by one member and shared by several.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// GroupID is the group whose balances this expense moves.
	GroupID string

	// Description is a free-form label (e.g., "Groceries").
	Description string

	// Amount is the positive total, rounded to cents.
	Amount decimal.Decimal

	// Currency is inherited from the group.
	Currency string

	// Owner is the member who paid.
	Owner string

	// Members are the people sharing the cost, in split order.
	Members []string

	// Split is the requested split: ledger.Equal, ledger.Exact or ledger.Percentage.
	Split ledger.Split

	// Details is the per-member owed amount. It is computed once on create or
	// edit and reused as-is when the expense is reversed.
	Details []ledger.SplitDetail

	// CreatedBy is the member who recorded the expense.
	CreatedBy string

	// CreatedAt and UpdatedAt are Unix timestamps.
	CreatedAt int64
	UpdatedAt int64
}
