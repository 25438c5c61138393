package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmynk/groupledger/internal/ledger"
	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/internal/storage"
)

// CreateGroup persists a new group with every member at a zero balance.
func (s *PostgresStore) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt == 0 {
		group.CreatedAt = time.Now().Unix()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		"INSERT INTO groups (id, name, currency, created_at) VALUES ($1, $2, $3, $4)",
		group.ID, group.Name, group.Currency, group.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	if err := insertMembers(ctx, tx, group.ID, group.Members, 0); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	group.Balances = ledger.NewBalanceMap(group.Members)
	return nil
}

// GetGroup retrieves a group by ID, including members and balances.
func (s *PostgresStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return getGroup(ctx, s.pool, groupID)
}

// ListGroups retrieves all groups, newest first.
func (s *PostgresStore) ListGroups(ctx context.Context) ([]*models.Group, error) {
	return s.listGroups(ctx, "SELECT id FROM groups ORDER BY created_at DESC, id")
}

// ListGroupsByMember retrieves the groups member belongs to.
func (s *PostgresStore) ListGroupsByMember(ctx context.Context, member string) ([]*models.Group, error) {
	return s.listGroups(ctx,
		`SELECT g.id FROM groups g
		 JOIN group_members m ON m.group_id = g.id
		 WHERE m.member = $1
		 ORDER BY g.created_at DESC, g.id`,
		member,
	)
}

func (s *PostgresStore) listGroups(ctx context.Context, query string, args ...any) ([]*models.Group, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan group ids: %w", err)
	}

	groups := make([]*models.Group, 0, len(ids))
	for _, id := range ids {
		group, err := getGroup(ctx, s.pool, id)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// DeleteGroup removes a group; balances and expenses go with it.
func (s *PostgresStore) DeleteGroup(ctx context.Context, groupID string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM groups WHERE id = $1", groupID)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	return nil
}

func getGroup(ctx context.Context, q querier, groupID string) (*models.Group, error) {
	group := &models.Group{}
	err := q.QueryRow(ctx,
		"SELECT id, name, currency, created_at FROM groups WHERE id = $1",
		groupID,
	).Scan(&group.ID, &group.Name, &group.Currency, &group.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	rows, err := q.Query(ctx,
		"SELECT member, balance::text FROM group_members WHERE group_id = $1 ORDER BY position",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	defer rows.Close()

	group.Balances = make(ledger.BalanceMap)
	for rows.Next() {
		var member, balance string
		if err := rows.Scan(&member, &balance); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		v, err := parseAmount(balance)
		if err != nil {
			return nil, err
		}
		group.Members = append(group.Members, member)
		group.Balances[member] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}

	return group, nil
}

func insertMembers(ctx context.Context, q querier, groupID string, members []string, offset int) error {
	for i, member := range members {
		_, err := q.Exec(ctx,
			"INSERT INTO group_members (group_id, member, position, balance) VALUES ($1, $2, $3, 0)",
			groupID, member, offset+i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert member: %w", err)
		}
	}
	return nil
}
