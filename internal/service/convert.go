package service

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/groupledger/internal/accounting"
	"github.com/mmynk/groupledger/internal/ledger"
	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/pkg/api"
)

func toAPIGroup(g *models.Group) *api.Group {
	balances := make([]*api.Balance, len(g.Members))
	for i, member := range g.Members {
		balances[i] = &api.Balance{Member: member, Amount: g.Balances[member].StringFixed(2)}
	}
	return &api.Group{
		ID:        g.ID,
		Name:      g.Name,
		Currency:  g.Currency,
		Members:   g.Members,
		Balances:  balances,
		CreatedAt: g.CreatedAt,
	}
}

func toAPIExpense(e *models.Expense) *api.Expense {
	details := make([]*api.SplitDetail, len(e.Details))
	for i, d := range e.Details {
		details[i] = &api.SplitDetail{Member: d.Member, Owed: d.Owed.StringFixed(2)}
	}
	var values map[string]string
	if raw := ledger.RawValues(e.Split); len(raw) > 0 {
		values = make(map[string]string, len(raw))
		for member, v := range raw {
			values[member] = v.String()
		}
	}
	return &api.Expense{
		ID:          e.ID,
		GroupID:     e.GroupID,
		Description: e.Description,
		Amount:      e.Amount.StringFixed(2),
		Currency:    e.Currency,
		Owner:       e.Owner,
		Members:     e.Members,
		SplitType:   string(e.Split.Kind()),
		SplitValues: values,
		Details:     details,
		CreatedBy:   e.CreatedBy,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func toAPISettlement(s *models.Settlement) *api.Settlement {
	return &api.Settlement{
		ID:             s.ID,
		GroupID:        s.GroupID,
		Payer:          s.Payer,
		Payee:          s.Payee,
		Amount:         s.Amount.StringFixed(2),
		Currency:       s.Currency,
		IdempotencyKey: s.IdempotencyKey,
		Note:           s.Note,
		CreatedBy:      s.CreatedBy,
		CreatedAt:      s.CreatedAt,
	}
}

func toAPITransfers(transfers []ledger.Transfer) []*api.Transfer {
	out := make([]*api.Transfer, len(transfers))
	for i, t := range transfers {
		out[i] = &api.Transfer{From: t.From, To: t.To, Amount: t.Amount.StringFixed(2)}
	}
	return out
}

// parseAmount parses a wire amount. field names the request field in the
// returned ValidationError.
func parseAmount(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, ledger.Validationf(field, "%q is not a valid amount", s)
	}
	return d, nil
}

// expenseInput converts the shared fields of an add or update request.
func expenseInput(description, amount, owner string, members []string, splitType string, splitValues map[string]string, actor string) (accounting.ExpenseInput, error) {
	total, err := parseAmount("amount", amount)
	if err != nil {
		return accounting.ExpenseInput{}, err
	}
	kind, err := ledger.ParseSplitKind(splitType)
	if err != nil {
		return accounting.ExpenseInput{}, err
	}

	var values map[string]decimal.Decimal
	if kind != ledger.SplitEqual {
		values = make(map[string]decimal.Decimal, len(splitValues))
		for member, raw := range splitValues {
			v, err := parseAmount("split_values", raw)
			if err != nil {
				return accounting.ExpenseInput{}, err
			}
			values[member] = v
		}
	}
	split, err := ledger.NewSplit(kind, values)
	if err != nil {
		return accounting.ExpenseInput{}, err
	}

	return accounting.ExpenseInput{
		Description: description,
		Amount:      total,
		Owner:       owner,
		Members:     members,
		Split:       split,
		Actor:       actor,
	}, nil
}
