package persistence

import (
	"context"
	"strings"

	"gorm.io/gorm"
)

type txContextKey struct{}

// TxRunner runs closures inside a single database transaction. The
// transaction handle travels through the context so every repository
// call inside the closure joins the same transaction. State changes and
// their outbox records always commit together through this runner.
type TxRunner struct {
	db *gorm.DB
}

// NewTxRunner creates a transaction runner over the shared connection
func NewTxRunner(db *gorm.DB) *TxRunner {
	return &TxRunner{db: db}
}

// InTx executes fn inside a transaction. A returned error rolls back.
func (r *TxRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txContextKey{}, tx))
	})
}

// dbFrom returns the transaction from the context when present,
// otherwise the repository's own connection.
func dbFrom(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txContextKey{}).(*gorm.DB); ok {
		return tx
	}
	return fallback.WithContext(ctx)
}

// isUniqueViolation matches unique-constraint errors across the postgres
// and sqlite drivers without importing either driver's error types.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
