package accounting

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/groupledger/internal/fx"
	"github.com/mmynk/groupledger/internal/ledger"
	"github.com/mmynk/groupledger/internal/models"
)

// BalanceSheet is a group's balances together with the transfers that
// would settle them.
type BalanceSheet struct {
	Group     *models.Group
	Transfers []ledger.Transfer
}

// GroupBalance is one member's balance in one group.
type GroupBalance struct {
	GroupID   string
	GroupName string
	Currency  string
	Balance   decimal.Decimal
	// Converted is Balance expressed in the summary currency.
	Converted decimal.Decimal
}

// MemberSummary totals a member's balances across groups in one currency.
type MemberSummary struct {
	Member   string
	Currency string
	Groups   []GroupBalance
	Total    decimal.Decimal
}

// Balances returns a snapshot of a group's balances.
func (m *Manager) Balances(ctx context.Context, groupID string) (ledger.BalanceMap, error) {
	g, err := m.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return g.Balances, nil
}

// Simplify returns the transfers that settle a group. It reads a committed
// snapshot and takes no lock.
func (m *Manager) Simplify(ctx context.Context, groupID string) ([]ledger.Transfer, error) {
	sheet, err := m.BalanceSheet(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return sheet.Transfers, nil
}

// BalanceSheet returns a group snapshot and its simplified transfers.
func (m *Manager) BalanceSheet(ctx context.Context, groupID string) (*BalanceSheet, error) {
	g, err := m.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	transfers := ledger.Simplify(g.Balances)
	m.metrics.SimplifyTransfers.Observe(float64(len(transfers)))
	return &BalanceSheet{Group: g, Transfers: transfers}, nil
}

// MemberSummary lists member's balance in every group they belong to and
// totals them in currency. Balances in other currencies are converted with
// the configured rate table; without one only same-currency groups can be
// summed.
func (m *Manager) MemberSummary(ctx context.Context, member, currency string) (*MemberSummary, error) {
	if strings.TrimSpace(member) == "" {
		return nil, ledger.Validationf("member", "member id is required")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" && m.rates != nil {
		currency = m.rates.Base()
	}
	if currency == "" {
		return nil, ledger.Validationf("currency", "currency is required")
	}

	groups, err := m.store.ListGroupsByMember(ctx, member)
	if err != nil {
		return nil, err
	}

	summary := &MemberSummary{Member: member, Currency: currency, Total: decimal.Zero}
	for _, g := range groups {
		balance := g.Balances[member]
		converted, err := m.convert(balance, g.Currency, currency)
		if err != nil {
			return nil, err
		}
		summary.Groups = append(summary.Groups, GroupBalance{
			GroupID:   g.ID,
			GroupName: g.Name,
			Currency:  g.Currency,
			Balance:   balance,
			Converted: converted,
		})
		summary.Total = summary.Total.Add(converted)
	}
	return summary, nil
}

func (m *Manager) convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if strings.EqualFold(from, to) {
		return amount, nil
	}
	if m.rates == nil {
		return decimal.Zero, ledger.Validationf("currency", "no exchange rates configured to convert %s to %s", from, to)
	}
	converted, err := m.rates.Convert(amount, from, to)
	if errors.Is(err, fx.ErrUnknownCurrency) {
		return decimal.Zero, ledger.Validationf("currency", "%v", err)
	}
	return converted, err
}
