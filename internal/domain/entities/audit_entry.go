package entities

import "time"

// Anchor status of an audit entry. An entry is created pending, becomes
// anchored when the ledger accepts it, or anchor_abandoned after the
// retry budget is exhausted.
const (
	AnchorPending   = "pending"
	AnchorAnchored  = "anchored"
	AnchorAbandoned = "anchor_abandoned"
)

// Audit action names.
const (
	ActionValidateActe    = "validate_acte"
	ActionRejectActe      = "reject_acte"
	ActionUpdateActe      = "update_acte"
	ActionCreateOverride  = "create_override"
	ActionApplySuggestion = "apply_suggestion"
)

// AuditEntry is one append-only record of a decision. Entries are never
// updated after creation; only the anchor fields are filled in once the
// ledger call settles.
type AuditEntry struct {
	ID            int64 `json:"id" db:"id"`
	ActeID        int64 `json:"acte_id" db:"acte_id"`
	UtilisateurID int64 `json:"utilisateur_id" db:"utilisateur_id"`

	Action     string `json:"action" db:"action"`
	EntityType string `json:"entity_type" db:"entity_type"`
	EntityID   int64  `json:"entity_id" db:"entity_id"`

	OldValues map[string]any `json:"old_values,omitempty" db:"old_values"`
	NewValues map[string]any `json:"new_values,omitempty" db:"new_values"`

	TransactionHash string `json:"transaction_hash,omitempty" db:"transaction_hash"`
	AnchorStatut    string `json:"anchor_statut" db:"anchor_statut"`
	AnchorAttempts  int    `json:"anchor_attempts" db:"anchor_attempts"`

	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

// AuditTrailFilter narrows an audit trail listing.
type AuditTrailFilter struct {
	Action    string
	DateDebut *time.Time
	DateFin   *time.Time
	Limit     int
	Offset    int
}
