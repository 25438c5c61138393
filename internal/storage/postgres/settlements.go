package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/internal/storage"
)

const settlementColumns = `id, group_id, payer, payee, amount::text, currency, idempotency_key, fingerprint, created_at, created_by, note`

// GetSettlementByKey retrieves the settlement recorded under an idempotency key.
func (s *PostgresStore) GetSettlementByKey(ctx context.Context, key string) (*models.Settlement, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+settlementColumns+" FROM settlements WHERE idempotency_key = $1",
		key,
	)
	settlement, err := scanSettlement(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("settlement with key %s: %w", key, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return settlement, nil
}

// ListSettlementsByGroup retrieves all settlements for a group, newest first.
func (s *PostgresStore) ListSettlementsByGroup(ctx context.Context, groupID string) ([]*models.Settlement, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+settlementColumns+" FROM settlements WHERE group_id = $1 ORDER BY created_at DESC, id",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements by group: %w", err)
	}
	defer rows.Close()

	var settlements []*models.Settlement
	for rows.Next() {
		settlement, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		settlements = append(settlements, settlement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlements: %w", err)
	}

	return settlements, nil
}

func insertSettlement(ctx context.Context, q querier, settlement *models.Settlement) error {
	if settlement.ID == "" {
		settlement.ID = uuid.New().String()
	}
	if settlement.CreatedAt == 0 {
		settlement.CreatedAt = time.Now().Unix()
	}

	var note *string
	if settlement.Note != "" {
		note = &settlement.Note
	}

	_, err := q.Exec(ctx,
		`INSERT INTO settlements (id, group_id, payer, payee, amount, currency, idempotency_key, fingerprint, created_at, created_by, note)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		settlement.ID, settlement.GroupID, settlement.Payer, settlement.Payee,
		formatAmount(settlement.Amount), settlement.Currency, settlement.IdempotencyKey,
		settlement.Fingerprint, settlement.CreatedAt, settlement.CreatedBy, note,
	)
	if isDuplicateKey(err) {
		return fmt.Errorf("settlement key %s: %w", settlement.IdempotencyKey, storage.ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("failed to insert settlement: %w", err)
	}

	return nil
}

func scanSettlement(row pgx.Row) (*models.Settlement, error) {
	settlement := &models.Settlement{}
	var amount string
	var note *string

	err := row.Scan(&settlement.ID, &settlement.GroupID, &settlement.Payer, &settlement.Payee,
		&amount, &settlement.Currency, &settlement.IdempotencyKey, &settlement.Fingerprint,
		&settlement.CreatedAt, &settlement.CreatedBy, &note)
	if err != nil {
		return nil, err
	}

	if settlement.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}
	if note != nil {
		settlement.Note = *note
	}
	return settlement, nil
}
