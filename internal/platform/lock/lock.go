// Package lock provides the coarse, table-scoped mutual exclusion used to
// serialize insert/update/delete against one logical table. Readers never
// acquire it. Acquisition waits up to a bounded timeout and fails busy so
// callers can retry with backoff instead of queueing indefinitely.
package lock

import "context"

// Manager hands out named locks. Implementations must release on every exit
// path of the returned function and tolerate a crashed holder (the redis
// implementation leases, the memory one dies with the process).
type Manager interface {
	// Acquire blocks up to the manager's configured wait for the named lock.
	// On success it returns a release func that must be called exactly once.
	// On timeout it returns sentinel.ErrBusy.
	Acquire(ctx context.Context, name string) (release func(), err error)
}

type heldKey struct{ name string }

// WithHeld marks the context as already holding the named lock so nested
// store calls do not re-acquire it. Mirrors the tx-in-context pattern: the
// outermost caller owns the lifecycle.
func WithHeld(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, heldKey{name}, true)
}

// Held reports whether the context already holds the named lock.
func Held(ctx context.Context, name string) bool {
	held, _ := ctx.Value(heldKey{name}).(bool)
	return held
}
