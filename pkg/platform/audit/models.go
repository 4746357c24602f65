package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events that move or commit aid value, or decide who may
	// receive it. These require guaranteed persistence and long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to fraud review (flags, rejected actors).
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine lifecycle activity useful for debugging.
	CategoryOperations EventCategory = "operations"
)

// Event is the persisted audit record. Keep it transport-agnostic so stores and
// sinks can fan out.
type Event struct {
	ID        uuid.UUID
	Category  EventCategory
	Timestamp time.Time
	// Subject is "<kind>:<id>", e.g. "beneficiary:5f0c..." or "distribution:91ab...".
	Subject    string
	Action     string
	ActorID    string
	DisasterID string
	PoolID     string
	Amount     uint64
	Decision   string
	Reason     string
	RequestID  string
}

type AuditEvent string

const (
	// Verification events
	EventBeneficiaryRegistered AuditEvent = "beneficiary_registered"
	EventApprovalSubmitted     AuditEvent = "approval_submitted"
	EventBeneficiaryVerified   AuditEvent = "beneficiary_verified"
	EventBeneficiaryFlagged    AuditEvent = "beneficiary_flagged"
	EventBeneficiaryReinstated AuditEvent = "beneficiary_reinstated"
	EventBeneficiaryRejected   AuditEvent = "beneficiary_rejected"

	// Pool events
	EventPoolCreated           AuditEvent = "pool_created"
	EventDepositRecorded       AuditEvent = "deposit_recorded"
	EventBeneficiaryEnrolled   AuditEvent = "beneficiary_enrolled"
	EventPoolLocked            AuditEvent = "pool_locked"
	EventPoolClosed            AuditEvent = "pool_closed"
	EventPoolStatementExported AuditEvent = "pool_statement_exported"

	// Distribution events
	EventDistributionCreated   AuditEvent = "distribution_created"
	EventDistributionClaimed   AuditEvent = "distribution_claimed"
	EventDistributionReclaimed AuditEvent = "distribution_reclaimed"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventBeneficiaryVerified:   CategoryCompliance,
	EventBeneficiaryRejected:   CategoryCompliance,
	EventDepositRecorded:       CategoryCompliance,
	EventDistributionCreated:   CategoryCompliance,
	EventDistributionClaimed:   CategoryCompliance,
	EventDistributionReclaimed: CategoryCompliance,

	EventBeneficiaryFlagged:    CategorySecurity,
	EventBeneficiaryReinstated: CategorySecurity,

	EventBeneficiaryRegistered: CategoryOperations,
	EventApprovalSubmitted:     CategoryOperations,
	EventPoolCreated:           CategoryOperations,
	EventBeneficiaryEnrolled:   CategoryOperations,
	EventPoolLocked:            CategoryOperations,
	EventPoolClosed:            CategoryOperations,
	EventPoolStatementExported: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// ComplianceEvent is the right-sized input for the fail-closed compliance publisher.
type ComplianceEvent struct {
	Timestamp  time.Time
	Subject    string
	Action     AuditEvent
	ActorID    string
	DisasterID string
	PoolID     string
	Amount     uint64
	Decision   string
	Reason     string
	RequestID  string
}

// Category returns CategoryCompliance (always).
func (e ComplianceEvent) Category() EventCategory { return CategoryCompliance }

// ToEvent converts to the stored Event shape.
func (e ComplianceEvent) ToEvent() Event {
	return Event{
		Category:   CategoryCompliance,
		Timestamp:  e.Timestamp,
		Subject:    e.Subject,
		Action:     string(e.Action),
		ActorID:    e.ActorID,
		DisasterID: e.DisasterID,
		PoolID:     e.PoolID,
		Amount:     e.Amount,
		Decision:   e.Decision,
		Reason:     e.Reason,
		RequestID:  e.RequestID,
	}
}

// Store persists audit events. Append is called inside the business transaction.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}

// OutboxEntry is an appended event awaiting relay to the event stream.
type OutboxEntry struct {
	ID        uuid.UUID
	Key       string
	EventType string
	Payload   []byte
	CreatedAt time.Time
}

// Outbox is implemented by stores that queue events for relay.
type Outbox interface {
	FetchUnpublished(ctx context.Context, limit int) ([]OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}
