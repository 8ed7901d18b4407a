package entities

import "time"

// Constraint types understood by the compatibility rule engine.
const (
	ContrainteDureeMax           = "duree_max"
	ContrainteDureeMin           = "duree_min"
	ContrainteModificateurRequis = "modificateur_requis"
)

// Contrainte is one catalog-declared predicate attached to a code.
type Contrainte struct {
	Type   string `json:"type"`
	Valeur string `json:"valeur"`
}

// CodeCCAM is one entry of the CCAM reference catalog. Catalog rows are
// read-only here; a separate sync process maintains them.
type CodeCCAM struct {
	ID      int64  `json:"id" db:"id"`
	Code    string `json:"code" db:"code"`
	Libelle string `json:"libelle" db:"libelle"`

	Chapitre    string `json:"chapitre" db:"chapitre"`
	Section     string `json:"section" db:"section"`
	SousSection string `json:"sous_section" db:"sous_section"`

	TarifBase        float64 `json:"tarif_base" db:"tarif_base"`
	TarifAmbulatoire float64 `json:"tarif_ambulatoire" db:"tarif_ambulatoire"`
	TarifHospitalier float64 `json:"tarif_hospitalier" db:"tarif_hospitalier"`

	ModificateursCompatibles   []string     `json:"modificateurs_compatibles" db:"modificateurs_compatibles"`
	ModificateursIncompatibles []string     `json:"modificateurs_incompatibles" db:"modificateurs_incompatibles"`
	Contraintes                []Contrainte `json:"contraintes" db:"contraintes"`

	VersionCCAM string     `json:"version_ccam" db:"version_ccam"`
	DateEffet   *time.Time `json:"date_effet,omitempty" db:"date_effet"`
	DateFin     *time.Time `json:"date_fin,omitempty" db:"date_fin"`
	IsActive    bool       `json:"is_active" db:"is_active"`
}

// ActiveAt reports whether the code is active and inside its validity
// window at the given date.
func (c *CodeCCAM) ActiveAt(t time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.DateEffet != nil && t.Before(*c.DateEffet) {
		return false
	}
	if c.DateFin != nil && t.After(*c.DateFin) {
		return false
	}
	return true
}
