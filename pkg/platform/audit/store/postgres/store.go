package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	audit "sahara/pkg/platform/audit"
	txcontext "sahara/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Append writes the queryable audit_events row and the outbox row in the caller's
// transaction; the relay worker publishes outbox rows to Kafka.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append writes an audit event and its outbox entry.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Category = audit.AuditEvent(event.Action).Category()

	body, err := audit.EncodePayload(event)
	if err != nil {
		return err
	}

	exec := s.execer(ctx)
	_, err = exec.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, category, timestamp, subject, action, actor_id,
			disaster_id, pool_id, amount, decision, reason, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`,
		event.ID,
		string(event.Category),
		event.Timestamp,
		event.Subject,
		event.Action,
		event.ActorID,
		event.DisasterID,
		event.PoolID,
		strconv.FormatUint(event.Amount, 10),
		event.Decision,
		event.Reason,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_key, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		event.ID,
		audit.PartitionKey(event),
		event.Action,
		body,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListBySubject returns events for one subject, newest first.
func (s *Store) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, timestamp, subject, action, actor_id,
			   disaster_id, pool_id, amount, decision, reason, request_id
		FROM audit_events
		WHERE subject = $1
		ORDER BY timestamp DESC
	`, subject)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			event    audit.Event
			category string
			amount   string
		)
		if err := rows.Scan(
			&event.ID, &category, &event.Timestamp, &event.Subject, &event.Action, &event.ActorID,
			&event.DisasterID, &event.PoolID, &amount, &event.Decision, &event.Reason, &event.RequestID,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		if event.Amount, err = strconv.ParseUint(amount, 10, 64); err != nil {
			return nil, fmt.Errorf("parse audit amount: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// FetchUnpublished returns the oldest unpublished outbox entries. Rows are locked
// with SKIP LOCKED when called inside a transaction so parallel relays never share work.
func (s *Store) FetchUnpublished(ctx context.Context, limit int) ([]audit.OutboxEntry, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, aggregate_key, event_type, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []audit.OutboxEntry
	for rows.Next() {
		var e audit.OutboxEntry
		if err := rows.Scan(&e.ID, &e.Key, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps relayed entries.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE outbox SET published_at = NOW()
		WHERE id = ANY($1::uuid[])
	`, pq.Array(strIDs))
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}
