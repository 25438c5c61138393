package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/groupledger/internal/accounting"
	"github.com/mmynk/groupledger/internal/middleware"
	"github.com/mmynk/groupledger/internal/validator"
	"github.com/mmynk/groupledger/pkg/api"
)

// ExpenseService implements the Connect ExpenseService
type ExpenseService struct {
	ledger *accounting.Manager
}

// NewExpenseService creates a new ExpenseService backed by the given manager.
func NewExpenseService(ledger *accounting.Manager) *ExpenseService {
	return &ExpenseService{ledger: ledger}
}

// AddExpense records an expense and applies its split to the group.
func (s *ExpenseService) AddExpense(ctx context.Context, req *connect.Request[api.AddExpenseRequest]) (*connect.Response[api.AddExpenseResponse], error) {
	slog.Info("AddExpense request received",
		"group_id", req.Msg.GroupID,
		"amount", req.Msg.Amount,
		"split_type", req.Msg.SplitType,
	)

	if err := validator.Struct(req.Msg); err != nil {
		return nil, toConnectError("AddExpense", err)
	}

	msg := req.Msg
	in, err := expenseInput(msg.Description, msg.Amount, msg.Owner, msg.Members, msg.SplitType, msg.SplitValues, middleware.GetMemberID(ctx))
	if err != nil {
		return nil, toConnectError("AddExpense", err)
	}

	expense, err := s.ledger.AddExpense(ctx, msg.GroupID, in)
	if err != nil {
		return nil, toConnectError("AddExpense", err)
	}

	slog.Info("Expense added", "group_id", msg.GroupID, "expense_id", expense.ID)

	return connect.NewResponse(&api.AddExpenseResponse{Expense: toAPIExpense(expense)}), nil
}

// UpdateExpense replaces an expense, reversing its old split first.
func (s *ExpenseService) UpdateExpense(ctx context.Context, req *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.UpdateExpenseResponse], error) {
	slog.Info("UpdateExpense request received",
		"group_id", req.Msg.GroupID,
		"expense_id", req.Msg.ExpenseID,
	)

	if err := validator.Struct(req.Msg); err != nil {
		return nil, toConnectError("UpdateExpense", err)
	}

	msg := req.Msg
	in, err := expenseInput(msg.Description, msg.Amount, msg.Owner, msg.Members, msg.SplitType, msg.SplitValues, middleware.GetMemberID(ctx))
	if err != nil {
		return nil, toConnectError("UpdateExpense", err)
	}

	expense, err := s.ledger.UpdateExpense(ctx, msg.GroupID, msg.ExpenseID, in)
	if err != nil {
		return nil, toConnectError("UpdateExpense", err)
	}

	slog.Info("Expense updated", "group_id", msg.GroupID, "expense_id", expense.ID)

	return connect.NewResponse(&api.UpdateExpenseResponse{Expense: toAPIExpense(expense)}), nil
}

// DeleteExpense removes an expense and reverses its split.
func (s *ExpenseService) DeleteExpense(ctx context.Context, req *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error) {
	slog.Info("DeleteExpense request received",
		"group_id", req.Msg.GroupID,
		"expense_id", req.Msg.ExpenseID,
	)

	if err := validator.Struct(req.Msg); err != nil {
		return nil, toConnectError("DeleteExpense", err)
	}

	if err := s.ledger.DeleteExpense(ctx, req.Msg.GroupID, req.Msg.ExpenseID, middleware.GetMemberID(ctx)); err != nil {
		return nil, toConnectError("DeleteExpense", err)
	}

	slog.Info("Expense deleted", "expense_id", req.Msg.ExpenseID)

	return connect.NewResponse(&api.DeleteExpenseResponse{}), nil
}

// GetExpense retrieves an expense by ID.
func (s *ExpenseService) GetExpense(ctx context.Context, req *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error) {
	if err := validator.Struct(req.Msg); err != nil {
		return nil, toConnectError("GetExpense", err)
	}

	expense, err := s.ledger.GetExpense(ctx, req.Msg.ExpenseID)
	if err != nil {
		return nil, toConnectError("GetExpense", err)
	}

	return connect.NewResponse(&api.GetExpenseResponse{Expense: toAPIExpense(expense)}), nil
}

// ListExpenses lists a group's expenses, newest first.
func (s *ExpenseService) ListExpenses(ctx context.Context, req *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error) {
	if err := validator.Struct(req.Msg); err != nil {
		return nil, toConnectError("ListExpenses", err)
	}

	expenses, err := s.ledger.ListExpenses(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError("ListExpenses", err)
	}

	out := make([]*api.Expense, len(expenses))
	for i, e := range expenses {
		out[i] = toAPIExpense(e)
	}

	slog.Info("ListExpenses successful", "group_id", req.Msg.GroupID, "count", len(out))

	return connect.NewResponse(&api.ListExpensesResponse{Expenses: out}), nil
}
