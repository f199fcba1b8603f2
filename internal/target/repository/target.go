package repository

import (
	"context"
	"errors"

	"acmdaily/internal/common/db"
)

var ErrTargetNotFound = errors.New("push target not found")

// Target is one distribution destination, typically a chat group.
type Target struct {
	ID         int64
	TargetID   string
	Subscribed bool
}

// TargetRepository persists distribution targets.
type TargetRepository interface {
	// Upsert creates the target or updates its subscription flag.
	Upsert(ctx context.Context, tx db.Transaction, targetID string, subscribed bool) error
	Get(ctx context.Context, tx db.Transaction, targetID string) (*Target, error)
	ListSubscribed(ctx context.Context, tx db.Transaction) ([]*Target, error)
}

// MySQLTargetRepository implements TargetRepository on MySQL.
type MySQLTargetRepository struct {
	db db.Database
}

// NewTargetRepository creates a MySQL-backed target repository.
func NewTargetRepository(database db.Database) TargetRepository {
	return &MySQLTargetRepository{db: database}
}

func (r *MySQLTargetRepository) Upsert(ctx context.Context, tx db.Transaction, targetID string, subscribed bool) error {
	query := `
		INSERT INTO push_target (target_id, subscribed) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE subscribed = VALUES(subscribed)`
	_, err := db.GetQuerier(r.db, tx).Exec(ctx, query, targetID, subscribed)
	return err
}

func (r *MySQLTargetRepository) Get(ctx context.Context, tx db.Transaction, targetID string) (*Target, error) {
	query := "SELECT id, target_id, subscribed FROM push_target WHERE target_id = ?"
	var target Target
	err := db.GetQuerier(r.db, tx).QueryRow(ctx, query, targetID).Scan(&target.ID, &target.TargetID, &target.Subscribed)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrTargetNotFound
		}
		return nil, err
	}
	return &target, nil
}

func (r *MySQLTargetRepository) ListSubscribed(ctx context.Context, tx db.Transaction) ([]*Target, error) {
	query := "SELECT id, target_id, subscribed FROM push_target WHERE subscribed = TRUE ORDER BY id"
	rows, err := db.GetQuerier(r.db, tx).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var targets []*Target
	for rows.Next() {
		var target Target
		if err := rows.Scan(&target.ID, &target.TargetID, &target.Subscribed); err != nil {
			return nil, err
		}
		targets = append(targets, &target)
	}
	return targets, rows.Err()
}
