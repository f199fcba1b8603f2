package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"acmdaily/internal/codeforces"
	"acmdaily/internal/common/db"
)

var (
	ErrProblemNotFound = errors.New("problem not found")
	ErrProblemExists   = errors.New("problem already exists")
	ErrVersionConflict = errors.New("problem version conflict")
)

// ProblemRepository persists problem records and their credit ledgers.
type ProblemRepository interface {
	Create(ctx context.Context, tx db.Transaction, problem *Problem) (int64, error)
	GetByKey(ctx context.Context, tx db.Transaction, key codeforces.ProblemKey) (*Problem, error)

	// FirstInactiveByTier returns the oldest queued (inactive) record
	// for the tier, or ErrProblemNotFound when the queue is empty.
	FirstInactiveByTier(ctx context.Context, tx db.Transaction, tier Tier) (*Problem, error)

	// MarkActive activates a record for the given date.
	MarkActive(ctx context.Context, tx db.Transaction, key codeforces.ProblemKey, date string) error

	// Requeue returns a previously distributed record to the queue with
	// a fresh pusher and an empty ledger.
	Requeue(ctx context.Context, tx db.Transaction, key codeforces.ProblemKey, pusher string) error

	// ListActiveOn returns every record active with the given date.
	ListActiveOn(ctx context.Context, tx db.Transaction, date string) ([]*Problem, error)

	// ListDistributedKeys returns the identity of every record that has
	// ever been distributed, for filtering catalog candidate pools.
	ListDistributedKeys(ctx context.Context, tx db.Transaction) (map[codeforces.ProblemKey]struct{}, error)

	// AppendSolved replaces the solved ledger guarded by the record's
	// version; returns ErrVersionConflict if the record changed since
	// it was read.
	AppendSolved(ctx context.Context, tx db.Transaction, key codeforces.ProblemKey, solved []string, expectedVersion int64) error
}

// MySQLProblemRepository implements ProblemRepository on MySQL.
type MySQLProblemRepository struct {
	db db.Database
}

// NewProblemRepository creates a MySQL-backed problem repository.
func NewProblemRepository(database db.Database) ProblemRepository {
	return &MySQLProblemRepository{db: database}
}

const problemColumns = "id, contest_id, idx, rating, name, tier, active, activation_date, solved, pusher, version"

func (r *MySQLProblemRepository) Create(ctx context.Context, tx db.Transaction, problem *Problem) (int64, error) {
	if problem == nil {
		return 0, errors.New("problem is nil")
	}
	solved, err := marshalSolved(problem.Solved)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO daily_problem (contest_id, idx, rating, name, tier, active, activation_date, solved, pusher, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`
	result, err := db.GetQuerier(r.db, tx).Exec(ctx, query,
		problem.ContestID, problem.Index, problem.Rating, problem.Name,
		problem.Tier, problem.Active, problem.ActivationDate, solved, problem.Pusher)
	if err != nil {
		if _, ok := db.UniqueViolation(err); ok {
			return 0, ErrProblemExists
		}
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	problem.ID = id
	return id, nil
}

func (r *MySQLProblemRepository) GetByKey(ctx context.Context, tx db.Transaction, key codeforces.ProblemKey) (*Problem, error) {
	query := "SELECT " + problemColumns + " FROM daily_problem WHERE contest_id = ? AND idx = ?"
	row := db.GetQuerier(r.db, tx).QueryRow(ctx, query, key.ContestID, key.Index)
	return scanProblem(row)
}

func (r *MySQLProblemRepository) FirstInactiveByTier(ctx context.Context, tx db.Transaction, tier Tier) (*Problem, error) {
	query := "SELECT " + problemColumns + " FROM daily_problem WHERE active = FALSE AND tier = ? ORDER BY id LIMIT 1"
	row := db.GetQuerier(r.db, tx).QueryRow(ctx, query, tier)
	return scanProblem(row)
}

func (r *MySQLProblemRepository) MarkActive(ctx context.Context, tx db.Transaction, key codeforces.ProblemKey, date string) error {
	query := `
		UPDATE daily_problem
		SET active = TRUE, activation_date = ?, version = version + 1
		WHERE contest_id = ? AND idx = ?`
	return r.execOne(ctx, tx, query, date, key.ContestID, key.Index)
}

func (r *MySQLProblemRepository) Requeue(ctx context.Context, tx db.Transaction, key codeforces.ProblemKey, pusher string) error {
	query := `
		UPDATE daily_problem
		SET active = FALSE, activation_date = '', solved = '[]', pusher = ?, version = version + 1
		WHERE contest_id = ? AND idx = ?`
	return r.execOne(ctx, tx, query, pusher, key.ContestID, key.Index)
}

func (r *MySQLProblemRepository) ListActiveOn(ctx context.Context, tx db.Transaction, date string) ([]*Problem, error) {
	query := "SELECT " + problemColumns + " FROM daily_problem WHERE active = TRUE AND activation_date = ? ORDER BY tier"
	rows, err := db.GetQuerier(r.db, tx).Query(ctx, query, date)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var problems []*Problem
	for rows.Next() {
		problem, err := scanProblem(rows)
		if err != nil {
			return nil, err
		}
		problems = append(problems, problem)
	}
	return problems, rows.Err()
}

func (r *MySQLProblemRepository) ListDistributedKeys(ctx context.Context, tx db.Transaction) (map[codeforces.ProblemKey]struct{}, error) {
	query := "SELECT contest_id, idx FROM daily_problem WHERE active = TRUE"
	rows, err := db.GetQuerier(r.db, tx).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	keys := make(map[codeforces.ProblemKey]struct{})
	for rows.Next() {
		var key codeforces.ProblemKey
		if err := rows.Scan(&key.ContestID, &key.Index); err != nil {
			return nil, err
		}
		keys[key] = struct{}{}
	}
	return keys, rows.Err()
}

func (r *MySQLProblemRepository) AppendSolved(ctx context.Context, tx db.Transaction, key codeforces.ProblemKey, solved []string, expectedVersion int64) error {
	payload, err := marshalSolved(solved)
	if err != nil {
		return err
	}
	query := `
		UPDATE daily_problem
		SET solved = ?, version = version + 1
		WHERE contest_id = ? AND idx = ? AND version = ?`
	result, err := db.GetQuerier(r.db, tx).Exec(ctx, query, payload, key.ContestID, key.Index, expectedVersion)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *MySQLProblemRepository) execOne(ctx context.Context, tx db.Transaction, query string, args ...interface{}) error {
	result, err := db.GetQuerier(r.db, tx).Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProblemNotFound
	}
	return nil
}

// scanner covers both db.Row and db.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProblem(s scanner) (*Problem, error) {
	var problem Problem
	var solved string
	err := s.Scan(&problem.ID, &problem.ContestID, &problem.Index, &problem.Rating,
		&problem.Name, &problem.Tier, &problem.Active, &problem.ActivationDate,
		&solved, &problem.Pusher, &problem.Version)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrProblemNotFound
		}
		return nil, err
	}
	problem.Solved, err = unmarshalSolved(solved)
	if err != nil {
		return nil, err
	}
	return &problem, nil
}

func marshalSolved(solved []string) (string, error) {
	if solved == nil {
		solved = []string{}
	}
	payload, err := json.Marshal(solved)
	if err != nil {
		return "", fmt.Errorf("marshal solved list failed: %w", err)
	}
	return string(payload), nil
}

func unmarshalSolved(payload string) ([]string, error) {
	if payload == "" {
		return []string{}, nil
	}
	var solved []string
	if err := json.Unmarshal([]byte(payload), &solved); err != nil {
		return nil, fmt.Errorf("unmarshal solved list failed: %w", err)
	}
	return solved, nil
}
