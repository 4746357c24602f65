package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"sahara/internal/pool/models"
	id "sahara/pkg/domain"
	"sahara/pkg/platform/sentinel"
)

// PostgresRegistrations persists pool registrations in PostgreSQL.
type PostgresRegistrations struct {
	db *sql.DB
}

func NewPostgresRegistrations(db *sql.DB) *PostgresRegistrations {
	return &PostgresRegistrations{db: db}
}

const registrationColumns = `pool_id, beneficiary_id, weight::text, family_size, damage_severity, registered_at, distributed`

func (s *PostgresRegistrations) Create(ctx context.Context, r *models.Registration) error {
	_, err := execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO pool_registrations (pool_id, beneficiary_id, weight, family_size, damage_severity, registered_at, distributed)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7)
	`,
		uuid.UUID(r.PoolID), uuid.UUID(r.BeneficiaryID), amount(r.Weight),
		int16(r.FamilySize), int16(r.DamageSeverity), r.RegisteredAt, r.Distributed,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func (s *PostgresRegistrations) Find(ctx context.Context, poolID id.PoolID, beneficiaryID id.BeneficiaryID) (*models.Registration, error) {
	row := execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM pool_registrations WHERE pool_id = $1 AND beneficiary_id = $2`,
		uuid.UUID(poolID), uuid.UUID(beneficiaryID))
	r, err := scanRegistration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find registration: %w", err)
	}
	return r, nil
}

func (s *PostgresRegistrations) ListByPool(ctx context.Context, poolID id.PoolID) ([]*models.Registration, error) {
	rows, err := execer(ctx, s.db).QueryContext(ctx,
		`SELECT `+registrationColumns+` FROM pool_registrations WHERE pool_id = $1 ORDER BY registered_at, beneficiary_id`,
		uuid.UUID(poolID))
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var out []*models.Registration
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrations: %w", err)
	}
	return out, nil
}

// MarkDistributed is a conditional UPDATE; zero rows means the registration is
// missing or already marked.
func (s *PostgresRegistrations) MarkDistributed(ctx context.Context, poolID id.PoolID, beneficiaryID id.BeneficiaryID) error {
	res, err := execer(ctx, s.db).ExecContext(ctx, `
		UPDATE pool_registrations SET distributed = TRUE
		WHERE pool_id = $1 AND beneficiary_id = $2 AND distributed = FALSE
	`, uuid.UUID(poolID), uuid.UUID(beneficiaryID))
	if err != nil {
		return fmt.Errorf("mark distributed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark distributed rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := s.Find(ctx, poolID, beneficiaryID); err != nil {
		return err
	}
	return sentinel.ErrAlreadyUsed
}

func scanRegistration(row rowScanner) (*models.Registration, error) {
	var (
		r                   models.Registration
		poolID, beneficiary uuid.UUID
		weight              string
		family, damage      int16
	)
	if err := row.Scan(&poolID, &beneficiary, &weight, &family, &damage, &r.RegisteredAt, &r.Distributed); err != nil {
		return nil, err
	}
	w, err := strconv.ParseUint(weight, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse weight: %w", err)
	}
	r.PoolID = id.PoolID(poolID)
	r.BeneficiaryID = id.BeneficiaryID(beneficiary)
	r.Weight = w
	r.FamilySize = uint8(family)
	r.DamageSeverity = uint8(damage)
	return &r, nil
}
