package accounting

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/groupledger/internal/ledger"
	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/internal/notify"
	"github.com/mmynk/groupledger/internal/storage"
)

// SettleRequest records a real-world payment from Payer to Payee.
type SettleRequest struct {
	GroupID string
	Payer   string
	Payee   string
	Amount  decimal.Decimal
	// IdempotencyKey is unique per logical settlement. Retrying with the
	// same key never applies the payment twice.
	IdempotencyKey string
	Note           string
	// Actor is the member recording the settlement.
	Actor string
}

// Settle applies a settlement exactly once per idempotency key.
//
// A replay of a key already used for the same group, payer, payee and
// amount returns a ConflictAlreadyApplied error carrying the existing
// settlement ID; the same key with different content is ConflictKeyReused.
// Either way the balances are unchanged.
func (m *Manager) Settle(ctx context.Context, req SettleRequest) (*models.Settlement, error) {
	settlement, err := m.settle(ctx, req)
	m.metrics.Settlements.WithLabelValues(outcomeOf(err)).Inc()
	return settlement, err
}

func (m *Manager) settle(ctx context.Context, req SettleRequest) (*models.Settlement, error) {
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		return nil, ledger.Validationf("idempotency_key", "idempotency key is required")
	}
	if req.Payer == req.Payee {
		return nil, ledger.Validationf("payee", "payer and payee must differ")
	}
	if !req.Amount.IsPositive() {
		return nil, ledger.Validationf("amount", "must be positive, got %s", req.Amount.String())
	}
	amount := ledger.Round2(req.Amount)
	fingerprint := Fingerprint(req.GroupID, req.Payer, req.Payee, amount)

	// Fast path for plain retries; the unique key inside the transaction is
	// what actually guarantees at-most-once.
	if existing, err := m.store.GetSettlementByKey(ctx, key); err == nil {
		return nil, replayConflict(existing, fingerprint)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	settlement := &models.Settlement{
		Payer:          req.Payer,
		Payee:          req.Payee,
		Amount:         amount,
		IdempotencyKey: key,
		Fingerprint:    fingerprint,
		CreatedBy:      req.Actor,
		Note:           strings.TrimSpace(req.Note),
	}
	err := m.mutate(ctx, "settle", req.GroupID, func(ctx context.Context, tx storage.GroupTx) error {
		g := tx.Group()
		// Membership is re-checked against the locked state.
		next, err := ledger.ApplySettlement(g.Balances, req.Payer, req.Payee, amount)
		if err != nil {
			return err
		}
		settlement.Currency = g.Currency
		if err := saveBalances(ctx, tx, next); err != nil {
			return err
		}
		return tx.InsertSettlement(ctx, settlement)
	})
	if errors.Is(err, storage.ErrDuplicateKey) {
		existing, lookupErr := m.store.GetSettlementByKey(ctx, key)
		if lookupErr != nil {
			return nil, fmt.Errorf("failed to load settlement for replayed key: %w", lookupErr)
		}
		return nil, replayConflict(existing, fingerprint)
	}
	if err != nil {
		return nil, err
	}

	m.publish(notify.NewEvent(notify.SettlementRecorded, settlement.GroupID, settlement.ID, req.Actor, []string{settlement.Payer, settlement.Payee}, map[string]any{
		"payer":    settlement.Payer,
		"payee":    settlement.Payee,
		"amount":   settlement.Amount.StringFixed(2),
		"currency": settlement.Currency,
		"note":     settlement.Note,
	}))
	return settlement, nil
}

func replayConflict(existing *models.Settlement, fingerprint string) error {
	if existing.Fingerprint == fingerprint {
		return &ledger.ConflictError{
			Kind:       ledger.ConflictAlreadyApplied,
			Msg:        "settlement already processed",
			ExistingID: existing.ID,
		}
	}
	return &ledger.ConflictError{
		Kind:       ledger.ConflictKeyReused,
		Msg:        "idempotency key was used for a different settlement",
		ExistingID: existing.ID,
	}
}

// ListSettlements returns a group's settlements, newest first. History
// stays available after the group is deleted.
func (m *Manager) ListSettlements(ctx context.Context, groupID string) ([]*models.Settlement, error) {
	return m.store.ListSettlementsByGroup(ctx, groupID)
}

// GetSettlementByKey returns the settlement recorded under key.
func (m *Manager) GetSettlementByKey(ctx context.Context, key string) (*models.Settlement, error) {
	return m.store.GetSettlementByKey(ctx, key)
}
