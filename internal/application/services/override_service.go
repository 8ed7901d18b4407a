package services

import (
	"context"
	"fmt"
	"time"

	"github.com/meditrace/ccam-assist/internal/domain/entities"
	"github.com/meditrace/ccam-assist/internal/domain/repositories"
	apperrors "github.com/meditrace/ccam-assist/pkg/errors"
	"github.com/meditrace/ccam-assist/pkg/keylock"
)

var validOverrideTypes = map[string]bool{
	entities.OverrideCorrection:   true,
	entities.OverridePrecision:    true,
	entities.OverrideModificateur: true,
}

// OverrideService records human corrections of suggested codes. An
// override replaces the suggestion on a pending acte; the acte stays
// en_attente until a separate validation.
type OverrideService struct {
	repo     repositories.OverrideRepository
	acteRepo repositories.ActeRepository
	catalog  repositories.CatalogRepository
	audit    *AuditService
	locks    *keylock.KeyLock
}

// NewOverrideService creates a new override service. catalog may be nil
// to skip code existence checks. locks must be the same instance the
// acte service mutates under, so an override and a status transition on
// one acte never interleave; nil gets a private lock set.
func NewOverrideService(repo repositories.OverrideRepository, acteRepo repositories.ActeRepository, catalog repositories.CatalogRepository, audit *AuditService, locks *keylock.KeyLock) *OverrideService {
	if locks == nil {
		locks = keylock.New()
	}
	return &OverrideService{
		repo:     repo,
		acteRepo: acteRepo,
		catalog:  catalog,
		audit:    audit,
		locks:    locks,
	}
}

// CreateOverride records a correction on a pending acte and replaces its
// suggested code. Emits one audit entry; anchoring is enqueued.
func (s *OverrideService) CreateOverride(ctx context.Context, acteID, utilisateurID int64, codeOriginal, codeOverride, justification, typeOverride string) (*entities.Override, error) {
	if codeOriginal == "" || codeOverride == "" {
		return nil, apperrors.NewValidationError("both original and override codes are required")
	}
	if justification == "" {
		return nil, apperrors.NewValidationError("an override requires a justification")
	}
	if !validOverrideTypes[typeOverride] {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown override type %q", typeOverride))
	}

	if s.catalog != nil {
		if _, err := s.catalog.GetByCode(ctx, codeOverride); err != nil {
			if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
				return nil, apperrors.NewValidationError(fmt.Sprintf("unknown CCAM code %q", codeOverride))
			}
			return nil, err
		}
	}

	key := fmt.Sprintf("acte:%d", acteID)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	acte, err := s.acteRepo.GetByID(ctx, acteID)
	if err != nil {
		return nil, err
	}
	if acte.IsFinalized() {
		return nil, apperrors.NewFinalizedActError(fmt.Sprintf("acte %d is %s, its code can no longer be overridden", acteID, acte.Statut))
	}

	override := &entities.Override{
		ActeID:        acteID,
		UtilisateurID: utilisateurID,
		CodeOriginal:  codeOriginal,
		CodeOverride:  codeOverride,
		Justification: justification,
		TypeOverride:  typeOverride,
	}
	overrideID, err := s.repo.Create(ctx, override)
	if err != nil {
		return nil, err
	}
	override.ID = overrideID

	previousSuggestion := acte.CodeSuggere
	acte.CodeSuggere = codeOverride
	if err := s.acteRepo.Update(ctx, acte); err != nil {
		return nil, err
	}

	entry := &entities.AuditEntry{
		ActeID:        acteID,
		UtilisateurID: utilisateurID,
		Action:        entities.ActionCreateOverride,
		EntityType:    "override",
		EntityID:      override.ID,
		OldValues: map[string]any{
			"code_ccam_original": codeOriginal,
			"code_ccam_suggere":  previousSuggestion,
		},
		NewValues: map[string]any{
			"code_ccam_override": codeOverride,
			"justification":      justification,
			"type_override":      typeOverride,
		},
	}

	entryID, err := s.audit.Append(ctx, entry)
	if err != nil {
		// The override row, the acte write and the audit entry are one
		// unit; undo both writes before surfacing the failure.
		acte.CodeSuggere = previousSuggestion
		if revertErr := s.acteRepo.Update(ctx, acte); revertErr != nil {
			return nil, apperrors.NewInternalError("failed to revert acte after audit append failure", revertErr)
		}
		if deleteErr := s.repo.Delete(ctx, overrideID); deleteErr != nil {
			return nil, apperrors.NewInternalError("failed to remove override after audit append failure", deleteErr)
		}
		return nil, apperrors.NewInternalError("failed to append audit entry", err)
	}

	s.audit.Enqueue(entryID)
	return override, nil
}

// GetByID retrieves an override by id
func (s *OverrideService) GetByID(ctx context.Context, id int64) (*entities.Override, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByActe returns the overrides of an acte, newest first
func (s *OverrideService) ListByActe(ctx context.Context, acteID int64) ([]*entities.Override, error) {
	return s.repo.ListByActe(ctx, acteID)
}

// Approve marks an override approved by a supervisor
func (s *OverrideService) Approve(ctx context.Context, overrideID, approverID int64) error {
	override, err := s.repo.GetByID(ctx, overrideID)
	if err != nil {
		return err
	}
	if override.IsApproved {
		return apperrors.NewConflictError(fmt.Sprintf("override %d is already approved", overrideID))
	}
	if override.UtilisateurID == approverID {
		return apperrors.NewValidationError("an override cannot be approved by its author")
	}

	return s.repo.Approve(ctx, overrideID, approverID)
}

// Summary aggregates override statistics between two dates
func (s *OverrideService) Summary(ctx context.Context, from, to *time.Time) (*entities.OverrideSummary, error) {
	return s.repo.Summary(ctx, from, to)
}
