// Package tx defines the transactional boundary used by every service operation.
//
// A Runner executes a closure atomically: either every store mutation made through
// the closure's context is kept, or none is. Two implementations exist:
//   - Sharded: in-memory, serializes closures that share a shard key and rolls back
//     memory stores through a journal of undo functions.
//   - SQL: wraps database/sql BeginTx/Commit and exposes the *sql.Tx through the context.
//     It keeps the same undo journal, so memory stores used alongside Postgres roll back too.
package tx

import (
	"context"
	"database/sql"
)

// Runner is the transactional boundary consumed by services.
type Runner interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

type shardKeyCtx struct{}

// WithShardKey names the record a transaction serializes on (a pool or beneficiary id).
// Only the in-memory runner reads it; SQL transactions rely on row locks instead.
func WithShardKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, shardKeyCtx{}, key)
}

// ShardKey returns the key set by WithShardKey, or "".
func ShardKey(ctx context.Context) string {
	if k, ok := ctx.Value(shardKeyCtx{}).(string); ok {
		return k
	}
	return ""
}
