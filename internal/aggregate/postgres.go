package aggregate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	id "sahara/pkg/domain"
	txcontext "sahara/pkg/platform/tx"
	"sahara/pkg/requestcontext"
)

// PostgresStore keeps counters in aggregate_stats, one row per scope. Each scope
// is updated with a single upsert so concurrent transactions never lose increments.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const upsertStats = `
	INSERT INTO aggregate_stats (
		scope, beneficiaries, verified_beneficiaries, pools, donations,
		fees_collected, aid_distributed, aid_reclaimed, updated_at
	)
	VALUES ($1, $2::numeric, $3::numeric, $4::numeric, $5::numeric, $6::numeric, $7::numeric, $8::numeric, $9)
	ON CONFLICT (scope) DO UPDATE SET
		beneficiaries = LEAST(aggregate_stats.beneficiaries + EXCLUDED.beneficiaries, 18446744073709551615),
		verified_beneficiaries = LEAST(aggregate_stats.verified_beneficiaries + EXCLUDED.verified_beneficiaries, 18446744073709551615),
		pools = LEAST(aggregate_stats.pools + EXCLUDED.pools, 18446744073709551615),
		donations = LEAST(aggregate_stats.donations + EXCLUDED.donations, 18446744073709551615),
		fees_collected = LEAST(aggregate_stats.fees_collected + EXCLUDED.fees_collected, 18446744073709551615),
		aid_distributed = LEAST(aggregate_stats.aid_distributed + EXCLUDED.aid_distributed, 18446744073709551615),
		aid_reclaimed = LEAST(aggregate_stats.aid_reclaimed + EXCLUDED.aid_reclaimed, 18446744073709551615),
		updated_at = EXCLUDED.updated_at
`

func (s *PostgresStore) Apply(ctx context.Context, disaster id.DisasterID, d Delta) error {
	if d.IsZero() {
		return nil
	}
	now := requestcontext.Now(ctx)
	exec := s.execer(ctx)
	for _, scope := range []string{DisasterScope(disaster), PlatformScope} {
		_, err := exec.ExecContext(ctx, upsertStats,
			scope,
			strconv.FormatUint(d.Beneficiaries, 10),
			strconv.FormatUint(d.VerifiedBeneficiaries, 10),
			strconv.FormatUint(d.Pools, 10),
			strconv.FormatUint(d.Donations, 10),
			strconv.FormatUint(d.FeesCollected, 10),
			strconv.FormatUint(d.AidDistributed, 10),
			strconv.FormatUint(d.AidReclaimed, 10),
			now,
		)
		if err != nil {
			return fmt.Errorf("apply aggregate delta to %s: %w", scope, err)
		}
	}
	return nil
}

func (s *PostgresStore) Disaster(ctx context.Context, disaster id.DisasterID) (*Stats, error) {
	return s.load(ctx, DisasterScope(disaster))
}

func (s *PostgresStore) Platform(ctx context.Context) (*Stats, error) {
	return s.load(ctx, PlatformScope)
}

func (s *PostgresStore) load(ctx context.Context, scope string) (*Stats, error) {
	var (
		st     = Stats{Scope: scope}
		fields [7]string
	)
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT beneficiaries::text, verified_beneficiaries::text, pools::text, donations::text,
			   fees_collected::text, aid_distributed::text, aid_reclaimed::text, updated_at
		FROM aggregate_stats WHERE scope = $1
	`, scope).Scan(&fields[0], &fields[1], &fields[2], &fields[3], &fields[4], &fields[5], &fields[6], &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load aggregate %s: %w", scope, err)
	}

	targets := []*uint64{
		&st.Beneficiaries, &st.VerifiedBeneficiaries, &st.Pools, &st.Donations,
		&st.FeesCollected, &st.AidDistributed, &st.AidReclaimed,
	}
	for i, raw := range fields {
		if *targets[i], err = strconv.ParseUint(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("parse aggregate %s: %w", scope, err)
		}
	}
	return &st, nil
}
