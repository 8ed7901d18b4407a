package entities

import "time"

// Statut values for an acte. An acte starts en_attente and moves exactly
// once to valide or rejete; both are terminal.
const (
	StatutEnAttente = "en_attente"
	StatutValide    = "valide"
	StatutRejete    = "rejete"
)

// Acte is one billable medical procedure record awaiting or holding a
// CCAM classification code. Status and codes change only through the
// acte service transitions.
type Acte struct {
	ID         int64  `json:"id" db:"id"`
	NumeroActe string `json:"numero_acte" db:"numero_acte"`
	PatientID  string `json:"patient_id" db:"patient_id"`

	TypeActe            string   `json:"type_acte" db:"type_acte"`
	DescriptionClinique string   `json:"description_clinique" db:"description_clinique"`
	MaterielUtilise     string   `json:"materiel_utilise" db:"materiel_utilise"`
	DureeActe           int      `json:"duree_acte" db:"duree_acte"`
	Modificateurs       []string `json:"modificateurs" db:"modificateurs"`

	CodeSuggere    string  `json:"code_ccam_suggere" db:"code_ccam_suggere"`
	CodeFinal      string  `json:"code_ccam_final" db:"code_ccam_final"`
	ScoreConfiance float64 `json:"score_confiance" db:"score_confiance"`

	Statut         string     `json:"statut" db:"statut"`
	DateValidation *time.Time `json:"date_validation,omitempty" db:"date_validation"`

	Etablissement string    `json:"etablissement" db:"etablissement"`
	Service       string    `json:"service" db:"service"`
	DateActe      time.Time `json:"date_acte" db:"date_acte"`

	CreateurID   int64  `json:"createur_id" db:"createur_id"`
	ValidateurID *int64 `json:"validateur_id,omitempty" db:"validateur_id"`

	// TransactionHash references the latest ledger anchor for this acte.
	TransactionHash string `json:"transaction_hash,omitempty" db:"transaction_hash"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsFinalized reports whether the acte reached a terminal status.
func (a *Acte) IsFinalized() bool {
	return a.Statut == StatutValide || a.Statut == StatutRejete
}

// ActeUpdate is a partial update of the clinical fields of a pending acte.
// Nil fields are left untouched.
type ActeUpdate struct {
	TypeActe            *string    `json:"type_acte,omitempty"`
	DescriptionClinique *string    `json:"description_clinique,omitempty"`
	MaterielUtilise     *string    `json:"materiel_utilise,omitempty"`
	DureeActe           *int       `json:"duree_acte,omitempty"`
	Modificateurs       *[]string  `json:"modificateurs,omitempty"`
	Service             *string    `json:"service,omitempty"`
	DateActe            *time.Time `json:"date_acte,omitempty"`
}
