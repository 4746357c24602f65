package tx

import (
	"context"
	"database/sql"
	"time"

	dErrors "sahara/pkg/domain-errors"
)

// SQL is the Postgres Runner. Stores pick up the transaction via From(ctx) and
// lock the rows they mutate with SELECT ... FOR UPDATE. In-memory collaborators
// that register OnRollback undos are rolled back with the SQL transaction.
type SQL struct {
	db      *sql.DB
	timeout time.Duration
}

// NewSQL creates a SQL runner. A zero timeout uses DefaultTimeout.
func NewSQL(db *sql.DB, timeout time.Duration) *SQL {
	return &SQL{db: db, timeout: timeout}
}

func (t *SQL) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, ok := From(ctx); ok {
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

	sqlTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "begin transaction")
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	j := &Journal{}
	if err := fn(context.WithValue(WithTx(ctx, sqlTx), journalKey{}, j)); err != nil {
		j.rollback()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		j.rollback()
		return dErrors.Wrap(err, dErrors.CodeInternal, "commit transaction")
	}
	return nil
}
