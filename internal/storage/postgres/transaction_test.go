package postgres

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
)

func TestGetExecutor(t *testing.T) {
	db := &sqlx.DB{}

	assert.Nil(t, GetTxFromContext(context.Background()))
	assert.Same(t, db, GetExecutor(context.Background(), db))

	tx := &sqlx.Tx{}
	ctx := context.WithValue(context.Background(), txKey{}, tx)
	assert.Same(t, tx, GetTxFromContext(ctx))
	assert.Same(t, tx, GetExecutor(ctx, db))
}

func TestWithTransaction_JoinsOuter(t *testing.T) {
	// A manager without a database must never be asked to begin.
	tm := NewTransactionManager(nil)

	tx := &sqlx.Tx{}
	ctx := context.WithValue(context.Background(), txKey{}, tx)

	var inner *sqlx.Tx
	err := tm.WithTransaction(ctx, func(ctx context.Context) error {
		inner = GetTxFromContext(ctx)
		return nil
	})
	assert.NoError(t, err)
	assert.Same(t, tx, inner)
}
