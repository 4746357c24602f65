package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sahara/pkg/requestcontext"
)

// PostgresLedger is the custodial ledger backed by its own database through pgx.
// Each movement runs in one pgx transaction; the entry insert on the reference
// primary key makes retries idempotent.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// NewPostgres connects a pgx pool.
func NewPostgres(ctx context.Context, dsn string, maxConns int32) (*PostgresLedger, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse ledger dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect ledger: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping ledger: %w", err)
	}
	return &PostgresLedger{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool.
func NewPostgresFromPool(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

func (l *PostgresLedger) Close() {
	l.pool.Close()
}

func (l *PostgresLedger) Transfer(ctx context.Context, req TransferRequest) (*Receipt, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	amount := strconv.FormatUint(req.Amount, 10)

	var receipt *Receipt
	err := pgx.BeginFunc(ctx, l.pool, func(tx pgx.Tx) error {
		existing, inserted, err := insertEntry(ctx, tx, req.Reference, req.From, req.To, amount, now)
		if err != nil {
			return err
		}
		if !inserted {
			if !existing.matches(req.From, req.To, req.Amount) {
				return ErrReferenceConflict
			}
			receipt = existing
			return nil
		}

		tag, err := tx.Exec(ctx, `
			UPDATE ledger_accounts
			SET balance = balance - $1::numeric, updated_at = $3
			WHERE account = $2 AND balance >= $1::numeric
		`, amount, req.From, now)
		if err != nil {
			return fmt.Errorf("debit %s: %w", req.From, err)
		}
		if tag.RowsAffected() == 0 {
			return ErrInsufficientFunds
		}
		if err := creditAccount(ctx, tx, req.To, amount, now); err != nil {
			return err
		}
		receipt = &Receipt{Reference: req.Reference, From: req.From, To: req.To, Amount: req.Amount, CreatedAt: now}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (l *PostgresLedger) Credit(ctx context.Context, req CreditRequest) (*Receipt, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	amount := strconv.FormatUint(req.Amount, 10)

	var receipt *Receipt
	err := pgx.BeginFunc(ctx, l.pool, func(tx pgx.Tx) error {
		existing, inserted, err := insertEntry(ctx, tx, req.Reference, "", req.Account, amount, now)
		if err != nil {
			return err
		}
		if !inserted {
			if !existing.matches("", req.Account, req.Amount) {
				return ErrReferenceConflict
			}
			receipt = existing
			return nil
		}
		if err := creditAccount(ctx, tx, req.Account, amount, now); err != nil {
			return err
		}
		receipt = &Receipt{Reference: req.Reference, To: req.Account, Amount: req.Amount, CreatedAt: now}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (l *PostgresLedger) Balance(ctx context.Context, account string) (uint64, error) {
	var balance string
	err := l.pool.QueryRow(ctx, `SELECT balance::text FROM ledger_accounts WHERE account = $1`, account).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return strconv.ParseUint(balance, 10, 64)
}

// insertEntry claims the reference. When it already exists the stored entry is
// returned with inserted=false.
func insertEntry(ctx context.Context, tx pgx.Tx, reference, from, to, amount string, now time.Time) (*Receipt, bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO ledger_entries (reference, from_account, to_account, amount, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5)
		ON CONFLICT (reference) DO NOTHING
	`, reference, from, to, amount, now)
	if err != nil {
		return nil, false, fmt.Errorf("insert ledger entry: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil, true, nil
	}

	var (
		existing Receipt
		stored   string
	)
	err = tx.QueryRow(ctx, `
		SELECT reference, from_account, to_account, amount::text, created_at
		FROM ledger_entries WHERE reference = $1
	`, reference).Scan(&existing.Reference, &existing.From, &existing.To, &stored, &existing.CreatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("load ledger entry: %w", err)
	}
	if existing.Amount, err = strconv.ParseUint(stored, 10, 64); err != nil {
		return nil, false, fmt.Errorf("parse ledger amount: %w", err)
	}
	return &existing, false, nil
}

func creditAccount(ctx context.Context, tx pgx.Tx, account, amount string, now time.Time) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO ledger_accounts (account, balance, updated_at)
		VALUES ($1, $2::numeric, $3)
		ON CONFLICT (account) DO UPDATE
		SET balance = ledger_accounts.balance + EXCLUDED.balance, updated_at = EXCLUDED.updated_at
	`, account, amount, now)
	if err != nil {
		return fmt.Errorf("credit %s: %w", account, err)
	}
	return nil
}
