package db

import "context"

type commitHooksKey struct{}

// commitHooks buffers callbacks until the outermost transaction scope
// commits. One scope is shared by every nested InTx joining it.
type commitHooks struct {
	fns []func()
}

func (h *commitHooks) run() {
	for _, fn := range h.fns {
		fn()
	}
	h.fns = nil
}

// withCommitHooks opens a commit-hook scope on ctx. When ctx already
// carries one, the existing scope is joined and nil is returned so only
// the outermost caller flushes.
func withCommitHooks(ctx context.Context) (context.Context, *commitHooks) {
	if h, _ := ctx.Value(commitHooksKey{}).(*commitHooks); h != nil {
		return ctx, nil
	}
	h := &commitHooks{}
	return context.WithValue(ctx, commitHooksKey{}, h), h
}

// OnCommit defers fn until the surrounding transaction scope commits.
// Side effects that must not escape a rollback (e.g. notifications about
// recorded state) register here instead of firing inline. Outside any
// scope fn runs immediately.
func OnCommit(ctx context.Context, fn func()) {
	if h, _ := ctx.Value(commitHooksKey{}).(*commitHooks); h != nil {
		h.fns = append(h.fns, fn)
		return
	}
	fn()
}
