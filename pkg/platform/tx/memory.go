package tx

import (
	"context"
	"sync"
	"time"

	dErrors "sahara/pkg/domain-errors"
)

// numShards spreads unrelated records across independent locks.
const numShards = 128

// DefaultTimeout bounds a transaction that arrives without a deadline.
const DefaultTimeout = 5 * time.Second

// Sharded is the in-memory Runner. Closures with the same shard key run one at a
// time; closures on different keys proceed concurrently.
type Sharded struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

// NewSharded creates an in-memory runner. A zero timeout uses DefaultTimeout.
func NewSharded(timeout time.Duration) *Sharded {
	return &Sharded{timeout: timeout}
}

func (t *Sharded) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	// Nested calls join the outer transaction.
	if _, ok := ctx.Value(journalKey{}).(*Journal); ok {
		return fn(ctx)
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := hashString(ShardKey(ctx)) % numShards
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	j := &Journal{}
	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		j.rollback()
		return err
	}
	return nil
}

// hashString is FNV-1a.
func hashString(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

type journalKey struct{}

// Journal collects undo functions registered by memory stores during a transaction.
type Journal struct {
	mu    sync.Mutex
	undos []func()
}

func (j *Journal) record(undo func()) {
	j.mu.Lock()
	j.undos = append(j.undos, undo)
	j.mu.Unlock()
}

func (j *Journal) rollback() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := len(j.undos) - 1; i >= 0; i-- {
		j.undos[i]()
	}
	j.undos = nil
}

// OnRollback registers undo to run if the surrounding transaction fails.
// Outside a transaction it is a no-op. Memory stores call it while holding their own
// lock, and undo must re-acquire that lock itself.
func OnRollback(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(journalKey{}).(*Journal); ok {
		j.record(undo)
	}
}
