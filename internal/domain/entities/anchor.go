package entities

import "time"

// AnchorPayload is the wire format submitted to the external ledger for
// one audit entry. EntryID doubles as the idempotency key: the ledger
// deduplicates submissions carrying the same entry id.
type AnchorPayload struct {
	EntryID       int64     `json:"entry_id"`
	EntityID      int64     `json:"entity_id"`
	ActionType    string    `json:"action_type"`
	CodeBefore    string    `json:"code_before"`
	CodeAfter     string    `json:"code_after"`
	ActorID       int64     `json:"actor_id"`
	Justification string    `json:"justification"`
	Timestamp     time.Time `json:"timestamp"`
}

// Divergence is one field-level mismatch between local audit state and
// what the ledger reports. Reported, never auto-corrected.
type Divergence struct {
	EntryID int64  `json:"entry_id,omitempty"`
	Field   string `json:"field"`
	Local   string `json:"local"`
	Ledger  string `json:"ledger"`
}

// ReconcileReport is the outcome of reconciling one acte against the ledger.
type ReconcileReport struct {
	ActeID      int64        `json:"acte_id"`
	Verified    bool         `json:"verified"`
	Divergences []Divergence `json:"divergences"`
	CheckedAt   time.Time    `json:"checked_at"`
}
