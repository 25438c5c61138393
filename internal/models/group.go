package models

import "github.com/mmynk/groupledger/internal/ledger"

// Group is a set of members who share expenses in a single currency.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates", "Ski Trip").
	Name string

	// Currency is the ISO code every expense and settlement in the group uses.
	Currency string

	// Members is the list of member ids, in the order they joined.
	Members []string

	// Balances holds each member's running balance. It always has exactly one
	// entry per member and sums to zero.
	Balances ledger.BalanceMap

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64
}

// IsMember reports whether member belongs to the group.
func (g *Group) IsMember(member string) bool {
	for _, m := range g.Members {
		if m == member {
			return true
		}
	}
	return false
}
