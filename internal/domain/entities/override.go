package entities

import "time"

// Override kinds.
const (
	OverrideCorrection   = "correction"
	OverridePrecision    = "precision"
	OverrideModificateur = "modificateur"
)

// Override records a human correction of a suggested CCAM code.
// Immutable once created except for the approval and anchor fields.
type Override struct {
	ID            int64 `json:"id" db:"id"`
	ActeID        int64 `json:"acte_id" db:"acte_id"`
	UtilisateurID int64 `json:"utilisateur_id" db:"utilisateur_id"`

	CodeOriginal  string `json:"code_ccam_original" db:"code_ccam_original"`
	CodeOverride  string `json:"code_ccam_override" db:"code_ccam_override"`
	Justification string `json:"justification" db:"justification"`
	TypeOverride  string `json:"type_override" db:"type_override"`

	IsApproved bool   `json:"is_approved" db:"is_approved"`
	ApprovedBy *int64 `json:"approved_by,omitempty" db:"approved_by"`

	TransactionHash string `json:"transaction_hash,omitempty" db:"transaction_hash"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// OverrideSummary aggregates override statistics for a period.
type OverrideSummary struct {
	Total     int            `json:"total"`
	ParType   map[string]int `json:"par_type"`
	Approuves int            `json:"approuves"`
	EnAttente int            `json:"en_attente"`
}
