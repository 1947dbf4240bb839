package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TxRunner abstracts transaction scope so services can be exercised with
// in-memory repositories in tests.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type poolRunner struct{ pool *pgxpool.Pool }

// NewTxRunner returns a TxRunner backed by RunInTx on pool.
func NewTxRunner(pool *pgxpool.Pool) TxRunner {
	return poolRunner{pool: pool}
}

func (r poolRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return RunInTx(ctx, r.pool, fn)
}

// PassthroughRunner runs fn directly with no transaction. In-memory
// repositories provide their own atomicity in tests. Commit-hook scoping
// matches RunInTx: OnCommit callbacks flush only when the outermost call
// returns without error.
type PassthroughRunner struct{}

func (PassthroughRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	hctx, hooks := withCommitHooks(ctx)
	if hooks == nil {
		return fn(ctx)
	}
	if err := fn(hctx); err != nil {
		return err
	}
	hooks.run()
	return nil
}
