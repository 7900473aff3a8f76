package audit

import "time"

// Event is an immutable, append-only record of one dialogue turn.
//
// Invariants:
// - Events are never updated or deleted.
// - TenantID is empty when the turn was rejected before a tenant was resolved;
//   such events are only visible to super admins.
// - Recording is best-effort; a failed append never changes a turn's outcome.
type Event struct {
	ID       string    `json:"id" db:"id"`
	TenantID string    `json:"tenant_id,omitempty" db:"tenant_id"`
	CallID   string    `json:"call_id,omitempty" db:"call_id"`
	Type     EventType `json:"type" db:"type"`

	// Reason is set for rejected turns.
	Reason string `json:"reason,omitempty" db:"reason"`
	// TenantFailure distinguishes not-found from lookup-failed.
	TenantFailure string `json:"tenant_failure,omitempty" db:"tenant_failure"`

	LatencyMs int64  `json:"latency_ms" db:"latency_ms"`
	Message   string `json:"message,omitempty" db:"message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTurnGreeting  EventType = "turn_greeting"
	EventTurnContinued EventType = "turn_continued"
	EventTurnShortcut  EventType = "turn_shortcut"
	EventTurnDegraded  EventType = "turn_degraded"
	EventTurnRejected  EventType = "turn_rejected"
)

// Filter selects events in [From, To). An empty TenantID matches all tenants.
type Filter struct {
	TenantID string
	From     time.Time
	To       time.Time
}

func (f Filter) matches(e Event) bool {
	if f.TenantID != "" && e.TenantID != f.TenantID {
		return false
	}
	if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.CreatedAt.Before(f.To) {
		return false
	}
	return true
}
