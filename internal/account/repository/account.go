package repository

import (
	"context"
	"errors"

	"acmdaily/internal/common/db"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
)

// Account binds one chat identity to one Codeforces handle and carries the
// cumulative score. Both identities are unique while bound.
type Account struct {
	ID     int64
	ChatID string
	Handle string
	Score  int64
}

// AccountRepository persists participant accounts.
type AccountRepository interface {
	Create(ctx context.Context, tx db.Transaction, account *Account) (int64, error)
	GetByChatID(ctx context.Context, tx db.Transaction, chatID string) (*Account, error)
	GetByHandle(ctx context.Context, tx db.Transaction, handle string) (*Account, error)
	List(ctx context.Context, tx db.Transaction) ([]*Account, error)

	// ListRanked returns accounts ordered by score descending.
	ListRanked(ctx context.Context, tx db.Transaction, limit, offset int) ([]*Account, error)
	Count(ctx context.Context, tx db.Transaction) (int64, error)

	// AddScore applies an additive score update atomically at the
	// storage layer.
	AddScore(ctx context.Context, tx db.Transaction, handle string, delta int64) error

	// Delete removes the binding; the score goes with it.
	Delete(ctx context.Context, tx db.Transaction, chatID string) error
}

// MySQLAccountRepository implements AccountRepository on MySQL.
type MySQLAccountRepository struct {
	db db.Database
}

// NewAccountRepository creates a MySQL-backed account repository.
func NewAccountRepository(database db.Database) AccountRepository {
	return &MySQLAccountRepository{db: database}
}

const accountColumns = "id, chat_id, handle, score"

func (r *MySQLAccountRepository) Create(ctx context.Context, tx db.Transaction, account *Account) (int64, error) {
	if account == nil {
		return 0, errors.New("account is nil")
	}
	query := "INSERT INTO account (chat_id, handle, score) VALUES (?, ?, ?)"
	result, err := db.GetQuerier(r.db, tx).Exec(ctx, query, account.ChatID, account.Handle, account.Score)
	if err != nil {
		if _, ok := db.UniqueViolation(err); ok {
			return 0, ErrAccountExists
		}
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	account.ID = id
	return id, nil
}

func (r *MySQLAccountRepository) GetByChatID(ctx context.Context, tx db.Transaction, chatID string) (*Account, error) {
	query := "SELECT " + accountColumns + " FROM account WHERE chat_id = ?"
	return scanAccount(db.GetQuerier(r.db, tx).QueryRow(ctx, query, chatID))
}

func (r *MySQLAccountRepository) GetByHandle(ctx context.Context, tx db.Transaction, handle string) (*Account, error) {
	query := "SELECT " + accountColumns + " FROM account WHERE handle = ?"
	return scanAccount(db.GetQuerier(r.db, tx).QueryRow(ctx, query, handle))
}

func (r *MySQLAccountRepository) List(ctx context.Context, tx db.Transaction) ([]*Account, error) {
	query := "SELECT " + accountColumns + " FROM account ORDER BY id"
	return r.queryAccounts(ctx, tx, query)
}

func (r *MySQLAccountRepository) ListRanked(ctx context.Context, tx db.Transaction, limit, offset int) ([]*Account, error) {
	query := "SELECT " + accountColumns + " FROM account ORDER BY score DESC, id ASC LIMIT ? OFFSET ?"
	return r.queryAccounts(ctx, tx, query, limit, offset)
}

func (r *MySQLAccountRepository) Count(ctx context.Context, tx db.Transaction) (int64, error) {
	var total int64
	err := db.GetQuerier(r.db, tx).QueryRow(ctx, "SELECT COUNT(*) FROM account").Scan(&total)
	return total, err
}

func (r *MySQLAccountRepository) AddScore(ctx context.Context, tx db.Transaction, handle string, delta int64) error {
	query := "UPDATE account SET score = score + ? WHERE handle = ?"
	result, err := db.GetQuerier(r.db, tx).Exec(ctx, query, delta, handle)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *MySQLAccountRepository) Delete(ctx context.Context, tx db.Transaction, chatID string) error {
	result, err := db.GetQuerier(r.db, tx).Exec(ctx, "DELETE FROM account WHERE chat_id = ?", chatID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *MySQLAccountRepository) queryAccounts(ctx context.Context, tx db.Transaction, query string, args ...interface{}) ([]*Account, error) {
	rows, err := db.GetQuerier(r.db, tx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var accounts []*Account
	for rows.Next() {
		var account Account
		if err := rows.Scan(&account.ID, &account.ChatID, &account.Handle, &account.Score); err != nil {
			return nil, err
		}
		accounts = append(accounts, &account)
	}
	return accounts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*Account, error) {
	var account Account
	if err := row.Scan(&account.ID, &account.ChatID, &account.Handle, &account.Score); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}
