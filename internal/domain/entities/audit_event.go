package entities

import "time"

// Audit event types published for operators.
const (
	EventAnchorAbandoned     = "anchor_abandoned"
	EventIntegrityDivergence = "integrity_divergence"
)

// AuditEvent is an operator alert published on the event bus when
// anchoring is permanently abandoned or reconciliation finds a divergence.
type AuditEvent struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	ActeID    int64          `json:"acte_id,omitempty"`
	EntryID   int64          `json:"entry_id,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
