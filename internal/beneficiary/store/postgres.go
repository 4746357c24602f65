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

	"sahara/internal/beneficiary/models"
	id "sahara/pkg/domain"
	dErrors "sahara/pkg/domain-errors"
	"sahara/pkg/platform/sentinel"
	txcontext "sahara/pkg/platform/tx"
	"sahara/pkg/requestcontext"
)

// PostgresStore persists beneficiaries in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const beneficiaryColumns = `
	id, authority_id, disaster_id, name, phone_number,
	country, region, city, area, latitude, longitude,
	family_size, damage_severity, damage_description,
	status, approvals, approval_capacity, verified_at,
	flagged_reason, flagged_by, flagged_at, admin_notes,
	total_received::text, registered_by, registered_at, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, b *models.Beneficiary) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO beneficiaries (
			id, authority_id, disaster_id, name, phone_number,
			country, region, city, area, latitude, longitude,
			family_size, damage_severity, damage_description,
			status, approvals, approval_capacity, verified_at,
			flagged_reason, flagged_by, flagged_at, admin_notes,
			total_received, registered_by, registered_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23::numeric, $24, $25, $26)
	`, beneficiaryArgs(b)...)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert beneficiary: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, beneficiaryID id.BeneficiaryID) (*models.Beneficiary, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+beneficiaryColumns+` FROM beneficiaries WHERE id = $1`, uuid.UUID(beneficiaryID))
	b, err := scanBeneficiary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find beneficiary: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) ListByDisaster(ctx context.Context, disaster id.DisasterID, f Filter) ([]*models.Beneficiary, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT `+beneficiaryColumns+`
		FROM beneficiaries
		WHERE disaster_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY registered_at, id
		LIMIT $3
	`, string(disaster), string(f.Status), f.limit())
	if err != nil {
		return nil, fmt.Errorf("list beneficiaries: %w", err)
	}
	defer rows.Close()

	var out []*models.Beneficiary
	for rows.Next() {
		b, err := scanBeneficiary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan beneficiary: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate beneficiaries: %w", err)
	}
	return out, nil
}

// Execute locks the row with SELECT ... FOR UPDATE, runs the callbacks and writes
// the result back. Outside a caller transaction it opens its own.
func (s *PostgresStore) Execute(ctx context.Context, beneficiaryID id.BeneficiaryID, validate ValidateFunc, mutate MutateFunc) (*models.Beneficiary, error) {
	if _, ok := txcontext.From(ctx); !ok {
		var result *models.Beneficiary
		err := txcontext.NewSQL(s.db, 0).RunInTx(ctx, func(txCtx context.Context) error {
			var err error
			result, err = s.Execute(txCtx, beneficiaryID, validate, mutate)
			return err
		})
		return result, err
	}

	exec := s.execer(ctx)
	row := exec.QueryRowContext(ctx,
		`SELECT `+beneficiaryColumns+` FROM beneficiaries WHERE id = $1 FOR UPDATE`, uuid.UUID(beneficiaryID))
	b, err := scanBeneficiary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock beneficiary: %w", err)
	}

	if err := validate(b); err != nil {
		return nil, err
	}
	if err := mutate(b); err != nil {
		return nil, err
	}

	// total_received is owned by AddReceived and never written here.
	_, err = exec.ExecContext(ctx, `
		UPDATE beneficiaries SET
			name = $2, phone_number = $3, country = $4, region = $5, city = $6, area = $7,
			latitude = $8, longitude = $9, family_size = $10, damage_severity = $11,
			damage_description = $12, status = $13, approvals = $14, verified_at = $15,
			flagged_reason = $16, flagged_by = $17, flagged_at = $18, admin_notes = $19,
			updated_at = $20
		WHERE id = $1
	`,
		uuid.UUID(b.ID), b.Name, b.PhoneNumber,
		b.Location.Country, b.Location.Region, b.Location.City, b.Location.Area,
		b.Location.Latitude, b.Location.Longitude, int16(b.FamilySize), int16(b.DamageSeverity),
		b.DamageDescription, string(b.Status), pq.Array(approverStrings(b.Approvals)), nullTime(b.VerifiedAt),
		b.FlaggedReason, nullActor(b.FlaggedBy), nullTime(b.FlaggedAt), b.AdminNotes,
		b.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update beneficiary: %w", err)
	}
	return b, nil
}

// AddReceived is a single checked UPDATE so concurrent claims from different
// pools never lose an increment.
func (s *PostgresStore) AddReceived(ctx context.Context, beneficiaryID id.BeneficiaryID, amount uint64) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE beneficiaries
		SET total_received = total_received + $2::numeric, updated_at = $3
		WHERE id = $1 AND total_received + $2::numeric <= 18446744073709551615
	`, uuid.UUID(beneficiaryID), strconv.FormatUint(amount, 10), requestcontext.Now(ctx))
	if err != nil {
		return fmt.Errorf("add received: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("add received rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := s.FindByID(ctx, beneficiaryID); err != nil {
		return err
	}
	return dErrors.New(dErrors.CodeArithmeticOverflow, "total received overflow")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBeneficiary(row rowScanner) (*models.Beneficiary, error) {
	var (
		b              models.Beneficiary
		beneficiaryID  uuid.UUID
		authority      uuid.UUID
		disaster       string
		familySize     int16
		damageSeverity int16
		status         string
		approvers      []string
		capacity       int16
		verifiedAt     sql.NullTime
		flaggedBy      uuid.NullUUID
		flaggedAt      sql.NullTime
		received       string
		registeredBy   uuid.UUID
	)
	err := row.Scan(
		&beneficiaryID, &authority, &disaster, &b.Name, &b.PhoneNumber,
		&b.Location.Country, &b.Location.Region, &b.Location.City, &b.Location.Area,
		&b.Location.Latitude, &b.Location.Longitude,
		&familySize, &damageSeverity, &b.DamageDescription,
		&status, pq.Array(&approvers), &capacity, &verifiedAt,
		&b.FlaggedReason, &flaggedBy, &flaggedAt, &b.AdminNotes,
		&received, &registeredBy, &b.RegisteredAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.ID = id.BeneficiaryID(beneficiaryID)
	b.Authority = id.ActorID(authority)
	b.DisasterID = id.DisasterID(disaster)
	b.FamilySize = uint8(familySize)
	b.DamageSeverity = uint8(damageSeverity)
	b.Status = models.Status(status)
	b.RegisteredBy = id.ActorID(registeredBy)
	if verifiedAt.Valid {
		b.VerifiedAt = &verifiedAt.Time
	}
	if flaggedAt.Valid {
		b.FlaggedAt = &flaggedAt.Time
	}
	if flaggedBy.Valid {
		a := id.ActorID(flaggedBy.UUID)
		b.FlaggedBy = &a
	}
	if b.TotalReceived, err = strconv.ParseUint(received, 10, 64); err != nil {
		return nil, fmt.Errorf("parse total_received: %w", err)
	}

	actors := make([]id.ActorID, 0, len(approvers))
	for _, raw := range approvers {
		a, err := id.ParseActorID(raw)
		if err != nil {
			return nil, fmt.Errorf("parse approver: %w", err)
		}
		actors = append(actors, a)
	}
	if b.Approvals, err = models.RestoreApprovalSet(uint8(capacity), actors); err != nil {
		return nil, err
	}
	return &b, nil
}

func beneficiaryArgs(b *models.Beneficiary) []any {
	return []any{
		uuid.UUID(b.ID), uuid.UUID(b.Authority), string(b.DisasterID), b.Name, b.PhoneNumber,
		b.Location.Country, b.Location.Region, b.Location.City, b.Location.Area,
		b.Location.Latitude, b.Location.Longitude,
		int16(b.FamilySize), int16(b.DamageSeverity), b.DamageDescription,
		string(b.Status), pq.Array(approverStrings(b.Approvals)), int16(b.Approvals.Capacity()), nullTime(b.VerifiedAt),
		b.FlaggedReason, nullActor(b.FlaggedBy), nullTime(b.FlaggedAt), b.AdminNotes,
		strconv.FormatUint(b.TotalReceived, 10), uuid.UUID(b.RegisteredBy), b.RegisteredAt, b.UpdatedAt,
	}
}

func approverStrings(set models.ApprovalSet) []string {
	approvers := set.Approvers()
	out := make([]string, len(approvers))
	for i, a := range approvers {
		out[i] = a.String()
	}
	return out
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullActor(a *id.ActorID) uuid.NullUUID {
	if a == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*a), Valid: true}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
