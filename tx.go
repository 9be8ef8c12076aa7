package recordquery

import (
	"context"
	"database/sql"
	"fmt"
)

// txContextKey is a private key for storing the transaction in the context.
type txContextKey struct{}

// GetTx retrieves a transaction from the context, if one exists.
func GetTx(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txContextKey{}).(*sql.Tx)
	return tx, ok
}

// InjectTx returns a new context with the provided transaction injected.
// This is for callers who manage the transaction lifecycle themselves.
func InjectTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// WithTransaction runs fn within a database transaction. The transaction is
// injected into the context passed to fn, so mirror operations inside fn
// take part in it; it commits when fn returns nil and rolls back otherwise.
func WithTransaction(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// No-op if the transaction is committed below.
	defer tx.Rollback()

	if err := fn(InjectTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
