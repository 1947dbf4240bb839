package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type txKey struct{}

// WithTx returns a context carrying tx. Repositories pick it up through
// TxFromContext so that several repositories compose into one transaction.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the transaction carried by ctx, or nil.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

// Queryable is the subset of pgx operations repositories need; it is
// satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
type Queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// Conn returns the context transaction if one is active, otherwise pool.
func Conn(ctx context.Context, pool *pgxpool.Pool) Queryable {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// RunInTx executes fn inside a database transaction. The transaction is
// placed on the context so repositories called from fn join it. If ctx
// already carries a transaction, fn joins the outer one and commit/rollback
// is left to the outermost caller. OnCommit callbacks registered inside fn
// run after the outermost commit; a rollback discards them.
func RunInTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	hctx, hooks := withCommitHooks(WithTx(ctx, tx))
	if err := fn(hctx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	if hooks != nil {
		hooks.run()
	}
	return nil
}

// IsNoRows reports whether err is pgx.ErrNoRows, possibly wrapped.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
