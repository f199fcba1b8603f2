package db

import "context"

// Database defines the unified interface for relational database access.
// This abstraction allows switching between different drivers without
// changing business logic, and lets tests substitute lightweight fakes.
type Database interface {
	Querier

	// Transaction executes fn within a transaction, committing on nil
	// and rolling back on error
	Transaction(ctx context.Context, fn func(tx Transaction) error) error

	// BeginTx starts a new transaction
	BeginTx(ctx context.Context) (Transaction, error)

	// Ping verifies the database connection is alive
	Ping(ctx context.Context) error

	// Close closes the database connection
	Close() error
}

// Transaction represents an in-progress database transaction.
type Transaction interface {
	Querier

	// Commit commits the transaction
	Commit() error

	// Rollback aborts the transaction
	Rollback() error
}

// Rows is the result of a query that returns multiple rows.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Close() error
	Err() error
}

// Row is the result of a query that returns at most one row.
type Row interface {
	Scan(dest ...interface{}) error
}

// Result summarizes an executed statement.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}
