package audit

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// payload is the JSON structure relayed to the event stream. Amounts travel as
// decimal strings so consumers never lose precision above 2^53.
type payload struct {
	ID         string `json:"id"`
	Category   string `json:"category"`
	Timestamp  string `json:"timestamp"`
	Subject    string `json:"subject"`
	Action     string `json:"action"`
	ActorID    string `json:"actor_id,omitempty"`
	DisasterID string `json:"disaster_id,omitempty"`
	PoolID     string `json:"pool_id,omitempty"`
	Amount     string `json:"amount,omitempty"`
	Decision   string `json:"decision,omitempty"`
	Reason     string `json:"reason,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

// EncodePayload serializes an event for the outbox.
func EncodePayload(e Event) ([]byte, error) {
	p := payload{
		ID:         e.ID.String(),
		Category:   string(e.Category),
		Timestamp:  e.Timestamp.UTC().Format(time.RFC3339Nano),
		Subject:    e.Subject,
		Action:     e.Action,
		ActorID:    e.ActorID,
		DisasterID: e.DisasterID,
		PoolID:     e.PoolID,
		Decision:   e.Decision,
		Reason:     e.Reason,
		RequestID:  e.RequestID,
	}
	if e.Amount > 0 {
		p.Amount = strconv.FormatUint(e.Amount, 10)
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal audit payload: %w", err)
	}
	return b, nil
}

// PartitionKey groups events for one subject onto one partition so consumers see them in order.
func PartitionKey(e Event) string {
	if e.PoolID != "" {
		return "pool:" + e.PoolID
	}
	return e.Subject
}
