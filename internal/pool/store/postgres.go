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

	"sahara/internal/pool/models"
	id "sahara/pkg/domain"
	"sahara/pkg/platform/sentinel"
	txcontext "sahara/pkg/platform/tx"
)

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func execer(ctx context.Context, db *sql.DB) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return db
}

// PostgresStore persists pools in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const poolColumns = `
	id, disaster_id, name, authority_id, token_mint, custodial_account,
	policy, immediate_percent, locked_percent, time_lock_seconds,
	min_family_size, min_damage_severity, eligibility_criteria, description, target_amount::text,
	total_deposited::text, total_distributed::text, total_claimed::text,
	total_allocation_weight::text, fees_collected::text,
	registered_count, distributed_count, donor_count,
	phase, created_at, locked_at, distributed_at, closed_at, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, p *models.Pool) error {
	_, err := execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO fund_pools (
			id, disaster_id, name, authority_id, token_mint, custodial_account,
			policy, immediate_percent, locked_percent, time_lock_seconds,
			min_family_size, min_damage_severity, eligibility_criteria, description, target_amount,
			total_deposited, total_distributed, total_claimed,
			total_allocation_weight, fees_collected,
			registered_count, distributed_count, donor_count,
			phase, created_at, locked_at, distributed_at, closed_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15::numeric,
			$16::numeric, $17::numeric, $18::numeric, $19::numeric, $20::numeric,
			$21, $22, $23, $24, $25, $26, $27, $28, $29)
	`,
		uuid.UUID(p.ID), string(p.DisasterID), p.Name, uuid.UUID(p.Authority), p.TokenMint, p.CustodialAccount,
		string(p.Policy), int16(p.ImmediatePercent), int16(p.LockedPercent), int64(p.TimeLock/time.Second),
		minimum(p.MinFamilySize), minimum(p.MinDamageSeverity), p.EligibilityCriteria, p.Description, nullAmount(p.TargetAmount),
		amount(p.TotalDeposited), amount(p.TotalDistributed), amount(p.TotalClaimed),
		amount(p.TotalAllocationWeight), amount(p.FeesCollected),
		int64(p.RegisteredCount), int64(p.DistributedCount), int64(p.DonorCount),
		string(p.Phase), p.CreatedAt, nullTime(p.LockedAt), nullTime(p.DistributedAt), nullTime(p.ClosedAt), p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert pool: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, poolID id.PoolID) (*models.Pool, error) {
	row := execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+poolColumns+` FROM fund_pools WHERE id = $1`, uuid.UUID(poolID))
	p, err := scanPool(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find pool: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListByDisaster(ctx context.Context, disaster id.DisasterID) ([]*models.Pool, error) {
	rows, err := execer(ctx, s.db).QueryContext(ctx,
		`SELECT `+poolColumns+` FROM fund_pools WHERE disaster_id = $1 ORDER BY created_at, id`, string(disaster))
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}
	defer rows.Close()

	var out []*models.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pools: %w", err)
	}
	return out, nil
}

// Execute locks the pool row with SELECT ... FOR UPDATE, runs the callbacks and
// writes the mutable columns back. Outside a caller transaction it opens its own.
func (s *PostgresStore) Execute(ctx context.Context, poolID id.PoolID, validate ValidateFunc, mutate MutateFunc) (*models.Pool, error) {
	if _, ok := txcontext.From(ctx); !ok {
		var result *models.Pool
		err := txcontext.NewSQL(s.db, 0).RunInTx(ctx, func(txCtx context.Context) error {
			var err error
			result, err = s.Execute(txCtx, poolID, validate, mutate)
			return err
		})
		return result, err
	}

	exec := execer(ctx, s.db)
	row := exec.QueryRowContext(ctx,
		`SELECT `+poolColumns+` FROM fund_pools WHERE id = $1 FOR UPDATE`, uuid.UUID(poolID))
	p, err := scanPool(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock pool: %w", err)
	}

	if err := validate(p); err != nil {
		return nil, err
	}
	if err := mutate(p); err != nil {
		return nil, err
	}

	_, err = exec.ExecContext(ctx, `
		UPDATE fund_pools SET
			total_deposited = $2::numeric, total_distributed = $3::numeric, total_claimed = $4::numeric,
			total_allocation_weight = $5::numeric, fees_collected = $6::numeric,
			registered_count = $7, distributed_count = $8, donor_count = $9,
			phase = $10, locked_at = $11, distributed_at = $12, closed_at = $13, updated_at = $14,
			eligibility_criteria = $15, description = $16, target_amount = $17::numeric
		WHERE id = $1
	`,
		uuid.UUID(p.ID),
		amount(p.TotalDeposited), amount(p.TotalDistributed), amount(p.TotalClaimed),
		amount(p.TotalAllocationWeight), amount(p.FeesCollected),
		int64(p.RegisteredCount), int64(p.DistributedCount), int64(p.DonorCount),
		string(p.Phase), nullTime(p.LockedAt), nullTime(p.DistributedAt), nullTime(p.ClosedAt), p.UpdatedAt,
		p.EligibilityCriteria, p.Description, nullAmount(p.TargetAmount),
	)
	if err != nil {
		return nil, fmt.Errorf("update pool: %w", err)
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPool(row rowScanner) (*models.Pool, error) {
	var (
		p                                    models.Pool
		poolID, authority                    uuid.UUID
		disaster, policy, phase              string
		immediatePct, lockedPct              int16
		timeLockSeconds                      int64
		minFamily, minDamage                 int16
		target                               sql.NullString
		deposited, distributed, claimed      string
		weight, fees                         string
		registered, distributedCount, donors int64
		lockedAt, distributedAt, closedAt    sql.NullTime
	)
	err := row.Scan(
		&poolID, &disaster, &p.Name, &authority, &p.TokenMint, &p.CustodialAccount,
		&policy, &immediatePct, &lockedPct, &timeLockSeconds,
		&minFamily, &minDamage, &p.EligibilityCriteria, &p.Description, &target,
		&deposited, &distributed, &claimed, &weight, &fees,
		&registered, &distributedCount, &donors,
		&phase, &p.CreatedAt, &lockedAt, &distributedAt, &closedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.ID = id.PoolID(poolID)
	p.Authority = id.ActorID(authority)
	p.DisasterID = id.DisasterID(disaster)
	p.Policy = models.Policy(policy)
	p.Phase = models.Phase(phase)
	p.ImmediatePercent = uint8(immediatePct)
	p.LockedPercent = uint8(lockedPct)
	p.TimeLock = time.Duration(timeLockSeconds) * time.Second
	p.MinFamilySize = optionalMinimum(minFamily)
	p.MinDamageSeverity = optionalMinimum(minDamage)
	p.RegisteredCount = uint32(registered)
	p.DistributedCount = uint32(distributedCount)
	p.DonorCount = uint32(donors)
	p.LockedAt = timePtr(lockedAt)
	p.DistributedAt = timePtr(distributedAt)
	p.ClosedAt = timePtr(closedAt)

	for _, f := range []struct {
		dst *uint64
		raw string
	}{
		{&p.TotalDeposited, deposited},
		{&p.TotalDistributed, distributed},
		{&p.TotalClaimed, claimed},
		{&p.TotalAllocationWeight, weight},
		{&p.FeesCollected, fees},
	} {
		if *f.dst, err = strconv.ParseUint(f.raw, 10, 64); err != nil {
			return nil, fmt.Errorf("parse pool amount: %w", err)
		}
	}
	if target.Valid {
		v, err := strconv.ParseUint(target.String, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse target_amount: %w", err)
		}
		p.TargetAmount = &v
	}
	return &p, nil
}

// Minimums are stored as 0 when unset; valid minimums start at 1.
func minimum(v *uint8) int16 {
	if v == nil {
		return 0
	}
	return int16(*v)
}

func optionalMinimum(v int16) *uint8 {
	if v <= 0 {
		return nil
	}
	u := uint8(v)
	return &u
}

func amount(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func nullAmount(v *uint64) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: amount(*v), Valid: true}
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

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
