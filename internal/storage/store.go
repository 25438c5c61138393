// Package storage provides abstractions for persistent ledger storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/groupledger/internal/ledger"
	"github.com/mmynk/groupledger/internal/models"
)

var (
	// ErrNotFound is returned when a group, expense or settlement does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a settlement reuses an idempotency key.
	ErrDuplicateKey = errors.New("duplicate idempotency key")
)

// Store defines the interface for ledger storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the accounting layer.
type Store interface {
	// CreateGroup persists a new group with every member at a zero balance.
	// The group.ID and CreatedAt fields are populated by the store.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup retrieves a group with its members and a balance snapshot.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// ListGroups retrieves all groups, newest first.
	ListGroups(ctx context.Context) ([]*models.Group, error)

	// ListGroupsByMember retrieves the groups member belongs to.
	ListGroupsByMember(ctx context.Context, member string) ([]*models.Group, error)

	// DeleteGroup removes a group with its balances and expenses. Settlements
	// are kept as history.
	DeleteGroup(ctx context.Context, groupID string) error

	// GetExpense retrieves an expense with its split details.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// ListExpensesByGroup retrieves a group's expenses, newest first.
	ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error)

	// ListSettlementsByGroup retrieves a group's settlements, newest first.
	ListSettlementsByGroup(ctx context.Context, groupID string) ([]*models.Settlement, error)

	// GetSettlementByKey retrieves the settlement recorded under an idempotency key.
	GetSettlementByKey(ctx context.Context, key string) (*models.Settlement, error)

	// InGroupTx runs fn inside a single transaction that holds the group's row
	// lock. The transaction commits when fn returns nil and rolls back on any
	// error or context cancellation.
	InGroupTx(ctx context.Context, groupID string, fn func(ctx context.Context, tx GroupTx) error) error

	// Close releases any resources held by the store.
	Close() error
}

// GroupTx is the set of operations available inside InGroupTx. Every method
// is scoped to the group the transaction was opened for.
type GroupTx interface {
	// Group returns the group as loaded at the start of the transaction.
	Group() *models.Group

	// SaveBalances overwrites every member's balance.
	SaveBalances(ctx context.Context, balances ledger.BalanceMap) error

	// AddMembers adds new members at a zero balance.
	AddMembers(ctx context.Context, members []string) error

	// RemoveMember drops a member and their balance entry.
	RemoveMember(ctx context.Context, member string) error

	// MemberReferenced reports whether any expense of the group names member
	// as owner or split member.
	MemberReferenced(ctx context.Context, member string) (bool, error)

	// GetExpense reads an expense of this group inside the transaction.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// InsertExpense persists a new expense; ID and timestamps are populated.
	InsertExpense(ctx context.Context, expense *models.Expense) error

	// UpdateExpense replaces an expense and its split details.
	UpdateExpense(ctx context.Context, expense *models.Expense) error

	// DeleteExpense removes an expense.
	DeleteExpense(ctx context.Context, expenseID string) error

	// InsertSettlement persists a settlement. It returns ErrDuplicateKey when
	// the idempotency key has been used before.
	InsertSettlement(ctx context.Context, settlement *models.Settlement) error
}
