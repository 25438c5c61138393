package models

import "github.com/shopspring/decimal"

// Settlement represents a payment between group members to clear debts.
// Settlements are immutable once recorded.
type Settlement struct {
	// ID is the unique identifier for the settlement (UUID format).
	ID string

	// GroupID is the group this settlement belongs to.
	GroupID string

	// Payer is the member who paid (debtor settling up).
	Payer string

	// Payee is the member who received payment (creditor being paid).
	Payee string

	// Amount is the positive payment amount.
	Amount decimal.Decimal

	// Currency is inherited from the group.
	Currency string

	// IdempotencyKey is unique per logical settlement request.
	IdempotencyKey string

	// Fingerprint identifies the request content the key was first used with.
	Fingerprint string

	// CreatedAt is the Unix timestamp when the settlement was recorded.
	CreatedAt int64

	// CreatedBy is the member who recorded this settlement.
	CreatedBy string

	// Note is an optional description for the settlement.
	Note string
}
