package accounting

import (
	"context"
	"strings"

	"github.com/mmynk/groupledger/internal/ledger"
	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/internal/storage"
)

// CreateGroup creates a group with every member at a zero balance.
func (m *Manager) CreateGroup(ctx context.Context, name, currency string, members []string) (*models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ledger.Validationf("name", "group name is required")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return nil, ledger.Validationf("currency", "expected a 3-letter currency code, got %q", currency)
	}
	if err := checkMemberList(members, nil); err != nil {
		return nil, err
	}

	group := &models.Group{
		Name:     name,
		Currency: currency,
		Members:  append([]string(nil), members...),
	}
	if err := m.store.CreateGroup(ctx, group); err != nil {
		m.record("create_group", err)
		return nil, err
	}
	m.record("create_group", nil)
	return group, nil
}

// GetGroup returns a group with a snapshot of its balances.
func (m *Manager) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return m.store.GetGroup(ctx, groupID)
}

// ListGroups returns every group, or only member's groups when member is set.
func (m *Manager) ListGroups(ctx context.Context, member string) ([]*models.Group, error) {
	if member == "" {
		return m.store.ListGroups(ctx)
	}
	return m.store.ListGroupsByMember(ctx, member)
}

// AddMembers adds new members to a group at a zero balance.
func (m *Manager) AddMembers(ctx context.Context, groupID string, members []string) (*models.Group, error) {
	var group *models.Group
	err := m.mutate(ctx, "add_members", groupID, func(ctx context.Context, tx storage.GroupTx) error {
		if err := checkMemberList(members, tx.Group().Balances); err != nil {
			return err
		}
		if err := tx.AddMembers(ctx, members); err != nil {
			return err
		}
		group = snapshot(tx.Group())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// RemoveMember drops a member whose balance is zero and who no expense in
// the group refers to.
func (m *Manager) RemoveMember(ctx context.Context, groupID, member string) (*models.Group, error) {
	var group *models.Group
	err := m.mutate(ctx, "remove_member", groupID, func(ctx context.Context, tx storage.GroupTx) error {
		g := tx.Group()
		balance, ok := g.Balances[member]
		if !ok {
			return ledger.Validationf("member", "%q is not a member of the group", member)
		}
		if len(g.Members) == 1 {
			return ledger.Validationf("member", "cannot remove the last member; delete the group instead")
		}
		if !balance.IsZero() {
			return ledger.Validationf("member", "%q has an outstanding balance of %s", member, balance.StringFixed(2))
		}
		referenced, err := tx.MemberReferenced(ctx, member)
		if err != nil {
			return err
		}
		if referenced {
			return ledger.Validationf("member", "%q is part of existing expenses", member)
		}

		if err := tx.RemoveMember(ctx, member); err != nil {
			return err
		}
		if err := tx.Group().Balances.CheckZeroSum(); err != nil {
			return err
		}
		group = snapshot(tx.Group())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// DeleteGroup removes a group and its balances. Recorded settlements are
// kept as history.
func (m *Manager) DeleteGroup(ctx context.Context, groupID string) error {
	release, err := m.lock(ctx, groupID)
	if err != nil {
		m.record("delete_group", err)
		return err
	}
	defer release()

	err = m.store.DeleteGroup(ctx, groupID)
	m.record("delete_group", err)
	return err
}

// checkMemberList rejects empty, blank or duplicate member ids, and ids
// already present in existing.
func checkMemberList(members []string, existing ledger.BalanceMap) error {
	if len(members) == 0 {
		return ledger.Validationf("members", "at least one member is required")
	}
	seen := make(map[string]struct{}, len(members))
	for _, member := range members {
		if strings.TrimSpace(member) == "" {
			return ledger.Validationf("members", "member id cannot be blank")
		}
		if _, dup := seen[member]; dup {
			return ledger.Validationf("members", "duplicate member %q", member)
		}
		if existing.Has(member) {
			return ledger.Validationf("members", "%q is already a member", member)
		}
		seen[member] = struct{}{}
	}
	return nil
}

// snapshot copies a group so callers never share the transaction's state.
func snapshot(g *models.Group) *models.Group {
	out := *g
	out.Members = append([]string(nil), g.Members...)
	out.Balances = g.Balances.Clone()
	return &out
}
