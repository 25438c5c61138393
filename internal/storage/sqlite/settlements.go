package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/internal/storage"
)

const settlementColumns = `id, group_id, payer, payee, amount, currency, idempotency_key, fingerprint, created_at, created_by, note`

// GetSettlementByKey retrieves the settlement recorded under an idempotency key.
func (s *SQLiteStore) GetSettlementByKey(ctx context.Context, key string) (*models.Settlement, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+settlementColumns+" FROM settlements WHERE idempotency_key = ?",
		key,
	)
	settlement, err := scanSettlement(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("settlement with key %s: %w", key, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return settlement, nil
}

// ListSettlementsByGroup retrieves all settlements for a group, newest first.
func (s *SQLiteStore) ListSettlementsByGroup(ctx context.Context, groupID string) ([]*models.Settlement, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+settlementColumns+" FROM settlements WHERE group_id = ? ORDER BY created_at DESC, id",
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
	// Generate ID if not set
	if settlement.ID == "" {
		settlement.ID = uuid.New().String()
	}
	if settlement.CreatedAt == 0 {
		settlement.CreatedAt = time.Now().Unix()
	}

	var note any
	if settlement.Note != "" {
		note = settlement.Note
	}

	_, err := q.ExecContext(ctx,
		`INSERT INTO settlements (`+settlementColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSettlement(row rowScanner) (*models.Settlement, error) {
	settlement := &models.Settlement{}
	var amount string
	var note sql.NullString

	err := row.Scan(&settlement.ID, &settlement.GroupID, &settlement.Payer, &settlement.Payee,
		&amount, &settlement.Currency, &settlement.IdempotencyKey, &settlement.Fingerprint,
		&settlement.CreatedAt, &settlement.CreatedBy, &note)
	if err != nil {
		return nil, err
	}

	if settlement.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}
	if note.Valid {
		settlement.Note = note.String
	}
	return settlement, nil
}
