package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TxManager runs units of work. Every repository call made with the context
// passed to fn uses the same transaction.
type TxManager struct {
	db DBTX
}

// NewTxManager creates a TxManager on top of a pool.
func NewTxManager(db DBTX) *TxManager {
	return &TxManager{db: db}
}

// WithTransaction commits when fn returns nil and rolls back when it returns
// an error or panics. Nested calls join the outer transaction.
func (m *TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if InTransaction(ctx) {
		return fn(ctx)
	}

	tx, err := m.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && rbErr != pgx.ErrTxClosed {
				err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
			}
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
