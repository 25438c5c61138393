package service

import (
	"context"
	"log/slog"
	"strings"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/mmynk/groupledger/internal/accounting"
	"github.com/mmynk/groupledger/internal/middleware"
	"github.com/mmynk/groupledger/internal/validator"
	"github.com/mmynk/groupledger/pkg/api"
)

// IdempotencyKeyHeader lets clients send the settlement key out of band.
const IdempotencyKeyHeader = "Idempotency-Key"

// SettlementService implements the Connect SettlementService
type SettlementService struct {
	ledger *accounting.Manager
}

// NewSettlementService creates a new SettlementService backed by the given manager.
func NewSettlementService(ledger *accounting.Manager) *SettlementService {
	return &SettlementService{ledger: ledger}
}

// Settle records a payment between two members at most once per
// idempotency key. Without a key from the client a fresh one is generated,
// so such requests are never deduplicated.
func (s *SettlementService) Settle(ctx context.Context, req *connect.Request[api.SettleRequest]) (*connect.Response[api.SettleResponse], error) {
	slog.Info("Settle request received",
		"group_id", req.Msg.GroupID,
		"payer", req.Msg.Payer,
		"payee", req.Msg.Payee,
		"amount", req.Msg.Amount,
	)

	if err := validator.Struct(req.Msg); err != nil {
		return nil, toConnectError("Settle", err)
	}

	amount, err := parseAmount("amount", req.Msg.Amount)
	if err != nil {
		return nil, toConnectError("Settle", err)
	}

	key := strings.TrimSpace(req.Msg.IdempotencyKey)
	if key == "" {
		key = strings.TrimSpace(req.Header().Get(IdempotencyKeyHeader))
	}
	if key == "" {
		key = uuid.New().String()
	}

	settlement, err := s.ledger.Settle(ctx, accounting.SettleRequest{
		GroupID:        req.Msg.GroupID,
		Payer:          req.Msg.Payer,
		Payee:          req.Msg.Payee,
		Amount:         amount,
		IdempotencyKey: key,
		Note:           req.Msg.Note,
		Actor:          middleware.GetMemberID(ctx),
	})
	if err != nil {
		return nil, toConnectError("Settle", err)
	}

	slog.Info("Settlement recorded", "settlement_id", settlement.ID, "group_id", settlement.GroupID)

	return connect.NewResponse(&api.SettleResponse{Settlement: toAPISettlement(settlement)}), nil
}

// ListSettlements lists a group's settlements, newest first.
func (s *SettlementService) ListSettlements(ctx context.Context, req *connect.Request[api.ListSettlementsRequest]) (*connect.Response[api.ListSettlementsResponse], error) {
	if err := validator.Struct(req.Msg); err != nil {
		return nil, toConnectError("ListSettlements", err)
	}

	settlements, err := s.ledger.ListSettlements(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError("ListSettlements", err)
	}

	out := make([]*api.Settlement, len(settlements))
	for i, st := range settlements {
		out[i] = toAPISettlement(st)
	}

	return connect.NewResponse(&api.ListSettlementsResponse{Settlements: out}), nil
}
