package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"sahara/internal/distribution/models"
	id "sahara/pkg/domain"
	"sahara/pkg/platform/sentinel"
	txcontext "sahara/pkg/platform/tx"
)

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists distributions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const distributionColumns = `
	id, pool_id, beneficiary_id,
	allocated::text, immediate::text, locked::text, claimed::text, weight::text,
	unlock_at, claim_deadline, created_at, immediate_claimed_at, locked_claimed_at, expired_at,
	fully_claimed, expired, notes
`

func (s *PostgresStore) Create(ctx context.Context, d *models.Distribution) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO distributions (
			id, pool_id, beneficiary_id,
			allocated, immediate, locked, claimed, weight,
			unlock_at, claim_deadline, created_at, immediate_claimed_at, locked_claimed_at, expired_at,
			fully_claimed, expired, notes
		)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7::numeric, $8::numeric,
			$9, $10, $11, $12, $13, $14, $15, $16, $17)
	`,
		uuid.UUID(d.ID), uuid.UUID(d.PoolID), uuid.UUID(d.BeneficiaryID),
		amount(d.Allocated), amount(d.Immediate), amount(d.Locked), amount(d.Claimed), amount(d.Weight),
		nullTime(d.UnlockAt), nullTime(d.ClaimDeadline), d.CreatedAt,
		nullTime(d.ImmediateClaimedAt), nullTime(d.LockedClaimedAt), nullTime(d.ExpiredAt),
		d.FullyClaimed, d.Expired, d.Notes,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert distribution: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, distributionID id.DistributionID) (*models.Distribution, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+distributionColumns+` FROM distributions WHERE id = $1`, uuid.UUID(distributionID))
	d, err := scanDistribution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find distribution: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) ListByPool(ctx context.Context, poolID id.PoolID) ([]*models.Distribution, error) {
	return s.query(ctx, "list distributions",
		`SELECT `+distributionColumns+` FROM distributions WHERE pool_id = $1 ORDER BY created_at, id`,
		uuid.UUID(poolID))
}

// ListReclaimable uses the partial index on claim_deadline.
func (s *PostgresStore) ListReclaimable(ctx context.Context, now time.Time, limit int) ([]*models.Distribution, error) {
	if limit <= 0 {
		limit = 1000
	}
	return s.query(ctx, "list reclaimable distributions", `
		SELECT `+distributionColumns+` FROM distributions
		WHERE claimed = 0 AND expired = FALSE AND claim_deadline < $1
		ORDER BY claim_deadline, id
		LIMIT $2
	`, now, limit)
}

func (s *PostgresStore) query(ctx context.Context, op, query string, args ...any) ([]*models.Distribution, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []*models.Distribution
	for rows.Next() {
		d, err := scanDistribution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan distribution: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// Execute locks the distribution row, runs the callbacks and writes the claim
// and expiry columns back. Outside a caller transaction it opens its own.
func (s *PostgresStore) Execute(ctx context.Context, distributionID id.DistributionID, validate ValidateFunc, mutate MutateFunc) (*models.Distribution, error) {
	if _, ok := txcontext.From(ctx); !ok {
		var result *models.Distribution
		err := txcontext.NewSQL(s.db, 0).RunInTx(ctx, func(txCtx context.Context) error {
			var err error
			result, err = s.Execute(txCtx, distributionID, validate, mutate)
			return err
		})
		return result, err
	}

	exec := s.execer(ctx)
	row := exec.QueryRowContext(ctx,
		`SELECT `+distributionColumns+` FROM distributions WHERE id = $1 FOR UPDATE`, uuid.UUID(distributionID))
	d, err := scanDistribution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock distribution: %w", err)
	}

	if err := validate(d); err != nil {
		return nil, err
	}
	if err := mutate(d); err != nil {
		return nil, err
	}

	_, err = exec.ExecContext(ctx, `
		UPDATE distributions SET
			claimed = $2::numeric, immediate_claimed_at = $3, locked_claimed_at = $4,
			expired_at = $5, fully_claimed = $6, expired = $7
		WHERE id = $1
	`,
		uuid.UUID(d.ID), amount(d.Claimed), nullTime(d.ImmediateClaimedAt), nullTime(d.LockedClaimedAt),
		nullTime(d.ExpiredAt), d.FullyClaimed, d.Expired,
	)
	if err != nil {
		return nil, fmt.Errorf("update distribution: %w", err)
	}
	return d, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDistribution(row rowScanner) (*models.Distribution, error) {
	var (
		d                                          models.Distribution
		distID, poolID, benID                      uuid.UUID
		allocated, immediate, locked, claimed, wgt string
		unlockAt, deadline                         sql.NullTime
		immediateAt, lockedAt, expiredAt           sql.NullTime
	)
	err := row.Scan(
		&distID, &poolID, &benID,
		&allocated, &immediate, &locked, &claimed, &wgt,
		&unlockAt, &deadline, &d.CreatedAt, &immediateAt, &lockedAt, &expiredAt,
		&d.FullyClaimed, &d.Expired, &d.Notes,
	)
	if err != nil {
		return nil, err
	}

	d.ID = id.DistributionID(distID)
	d.PoolID = id.PoolID(poolID)
	d.BeneficiaryID = id.BeneficiaryID(benID)
	d.UnlockAt = timePtr(unlockAt)
	d.ClaimDeadline = timePtr(deadline)
	d.ImmediateClaimedAt = timePtr(immediateAt)
	d.LockedClaimedAt = timePtr(lockedAt)
	d.ExpiredAt = timePtr(expiredAt)

	for _, f := range []struct {
		dst *uint64
		raw string
	}{
		{&d.Allocated, allocated},
		{&d.Immediate, immediate},
		{&d.Locked, locked},
		{&d.Claimed, claimed},
		{&d.Weight, wgt},
	} {
		if *f.dst, err = strconv.ParseUint(f.raw, 10, 64); err != nil {
			return nil, fmt.Errorf("parse distribution amount: %w", err)
		}
	}
	return &d, nil
}

func amount(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
