// Package rules implements the CCAM compatibility rule engine: a pure,
// deterministic check of a candidate code against the catalog and the
// clinical context of an acte. No I/O; identical input always yields
// identical output.
package rules

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/meditrace/ccam-assist/internal/domain/entities"
)

// Context is the suggestion-relevant slice of an acte used to validate
// a candidate code.
type Context struct {
	Modificateurs []string
	DureeActe     int
	DateActe      time.Time
}

// Result is the verdict for one (code, context) pair.
type Result struct {
	IsValid bool
	Reasons []string
}

// Engine validates codes against an immutable catalog snapshot.
type Engine struct {
	codes map[string]*entities.CodeCCAM
}

// NewEngine builds an engine over a catalog snapshot. The snapshot is
// copied into an index; later mutations of the slice do not affect the
// engine.
func NewEngine(catalog []*entities.CodeCCAM) *Engine {
	codes := make(map[string]*entities.CodeCCAM, len(catalog))
	for _, c := range catalog {
		codes[c.Code] = c
	}
	return &Engine{codes: codes}
}

// Validate checks a candidate code against the context. Unknown codes
// are invalid with reason "unknown code". Reasons are sorted so the
// output is stable for a given input.
func (e *Engine) Validate(code string, ctx Context) Result {
	entry, ok := e.codes[code]
	if !ok {
		return Result{IsValid: false, Reasons: []string{"unknown code"}}
	}

	var reasons []string

	if !entry.ActiveAt(ctx.DateActe) {
		reasons = append(reasons, fmt.Sprintf("code %s is not active at %s", code, ctx.DateActe.Format("2006-01-02")))
	}

	compatible := toSet(entry.ModificateursCompatibles)
	incompatible := toSet(entry.ModificateursIncompatibles)
	for _, m := range ctx.Modificateurs {
		if _, banned := incompatible[m]; banned {
			reasons = append(reasons, fmt.Sprintf("modificateur %s is incompatible with code %s", m, code))
			continue
		}
		if _, allowed := compatible[m]; !allowed {
			reasons = append(reasons, fmt.Sprintf("modificateur %s is not in the compatible set of code %s", m, code))
		}
	}

	reasons = append(reasons, e.checkContraintes(entry, ctx)...)

	sort.Strings(reasons)
	return Result{IsValid: len(reasons) == 0, Reasons: reasons}
}

func (e *Engine) checkContraintes(entry *entities.CodeCCAM, ctx Context) []string {
	var reasons []string
	for _, c := range entry.Contraintes {
		switch c.Type {
		case entities.ContrainteDureeMax:
			max, err := strconv.Atoi(c.Valeur)
			if err == nil && ctx.DureeActe > max {
				reasons = append(reasons, fmt.Sprintf("duree %d exceeds maximum %d for code %s", ctx.DureeActe, max, entry.Code))
			}
		case entities.ContrainteDureeMin:
			min, err := strconv.Atoi(c.Valeur)
			if err == nil && ctx.DureeActe < min {
				reasons = append(reasons, fmt.Sprintf("duree %d below minimum %d for code %s", ctx.DureeActe, min, entry.Code))
			}
		case entities.ContrainteModificateurRequis:
			if !contains(ctx.Modificateurs, c.Valeur) {
				reasons = append(reasons, fmt.Sprintf("modificateur %s is required by code %s", c.Valeur, entry.Code))
			}
		}
	}
	return reasons
}

// Known reports whether the catalog snapshot holds the code.
func (e *Engine) Known(code string) bool {
	_, ok := e.codes[code]
	return ok
}

// Libelle returns the catalog label of a code, or "" when unknown.
func (e *Engine) Libelle(code string) string {
	if entry, ok := e.codes[code]; ok {
		return entry.Libelle
	}
	return ""
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
