package services

import (
	"context"
	"fmt"
	"time"

	"github.com/meditrace/ccam-assist/internal/domain/entities"
	"github.com/meditrace/ccam-assist/internal/domain/repositories"
	"github.com/meditrace/ccam-assist/internal/infrastructure/observability"
	"github.com/meditrace/ccam-assist/pkg/config"
	apperrors "github.com/meditrace/ccam-assist/pkg/errors"
	"github.com/meditrace/ccam-assist/pkg/keylock"
)

// ActeService drives the acte state machine. An acte starts en_attente
// and transitions exactly once to valide or rejete; every mutation
// produces exactly one audit entry before returning. All mutations of
// one acte run under a per-acte lock.
type ActeService struct {
	repo  repositories.ActeRepository
	audit *AuditService
	cfg   config.SuggestionConfig
	locks *keylock.KeyLock
}

// NewActeService creates a new acte service. locks serializes mutations
// per acte; every service that writes acte rows must share the same
// instance. nil gets a private lock set for single-service use.
func NewActeService(repo repositories.ActeRepository, audit *AuditService, cfg config.SuggestionConfig, locks *keylock.KeyLock) *ActeService {
	if locks == nil {
		locks = keylock.New()
	}
	return &ActeService{
		repo:  repo,
		audit: audit,
		cfg:   cfg,
		locks: locks,
	}
}

// Create registers a new acte in en_attente status
func (s *ActeService) Create(ctx context.Context, acte *entities.Acte) (int64, error) {
	if acte.NumeroActe == "" || acte.PatientID == "" {
		return 0, apperrors.NewValidationError("numero_acte and patient_id are required")
	}
	if acte.DescriptionClinique == "" {
		return 0, apperrors.NewValidationError("description_clinique is required")
	}

	acte.Statut = entities.StatutEnAttente
	return s.repo.Create(ctx, acte)
}

// GetByID retrieves an acte by id
func (s *ActeService) GetByID(ctx context.Context, id int64) (*entities.Acte, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByNumero retrieves an acte by its business number
func (s *ActeService) GetByNumero(ctx context.Context, numero string) (*entities.Acte, error) {
	return s.repo.GetByNumero(ctx, numero)
}

// Validate finalizes an acte with its definitive CCAM code. Below the
// confidence threshold the caller must set force and give a
// justification.
func (s *ActeService) Validate(ctx context.Context, acteID int64, codeFinal, justification string, force bool, validateurID int64) (*entities.Acte, error) {
	if codeFinal == "" {
		return nil, apperrors.NewValidationError("code_ccam_final is required")
	}

	return s.transition(ctx, acteID, func(acte *entities.Acte) (*entities.AuditEntry, error) {
		if !force && acte.ScoreConfiance < s.confidenceThreshold() {
			return nil, apperrors.NewLowConfidenceError(fmt.Sprintf(
				"confidence %.0f below threshold %.0f, validation requires force with justification",
				acte.ScoreConfiance, s.confidenceThreshold()))
		}
		if force && justification == "" {
			return nil, apperrors.NewValidationError("forced validation requires a justification")
		}

		now := time.Now().UTC()
		entry := &entities.AuditEntry{
			ActeID:        acte.ID,
			UtilisateurID: validateurID,
			Action:        entities.ActionValidateActe,
			EntityType:    "acte",
			EntityID:      acte.ID,
			OldValues: map[string]any{
				"statut":          acte.Statut,
				"code_ccam_final": acte.CodeFinal,
			},
			NewValues: map[string]any{
				"statut":          entities.StatutValide,
				"code_ccam_final": codeFinal,
				"justification":   justification,
			},
		}

		acte.Statut = entities.StatutValide
		acte.CodeFinal = codeFinal
		acte.DateValidation = &now
		acte.ValidateurID = &validateurID
		return entry, nil
	})
}

// Reject finalizes an acte as rejected
func (s *ActeService) Reject(ctx context.Context, acteID int64, reason string, validateurID int64) (*entities.Acte, error) {
	if reason == "" {
		return nil, apperrors.NewValidationError("rejection reason is required")
	}

	return s.transition(ctx, acteID, func(acte *entities.Acte) (*entities.AuditEntry, error) {
		now := time.Now().UTC()
		entry := &entities.AuditEntry{
			ActeID:        acte.ID,
			UtilisateurID: validateurID,
			Action:        entities.ActionRejectActe,
			EntityType:    "acte",
			EntityID:      acte.ID,
			OldValues:     map[string]any{"statut": acte.Statut},
			NewValues: map[string]any{
				"statut": entities.StatutRejete,
				"raison": reason,
			},
		}

		acte.Statut = entities.StatutRejete
		acte.DateValidation = &now
		acte.ValidateurID = &validateurID
		return entry, nil
	})
}

// Update applies a partial clinical update to a pending acte
func (s *ActeService) Update(ctx context.Context, acteID int64, fields entities.ActeUpdate, utilisateurID int64) (*entities.Acte, error) {
	return s.transition(ctx, acteID, func(acte *entities.Acte) (*entities.AuditEntry, error) {
		oldValues := map[string]any{}
		newValues := map[string]any{}

		if fields.TypeActe != nil {
			oldValues["type_acte"], newValues["type_acte"] = acte.TypeActe, *fields.TypeActe
			acte.TypeActe = *fields.TypeActe
		}
		if fields.DescriptionClinique != nil {
			oldValues["description_clinique"], newValues["description_clinique"] = acte.DescriptionClinique, *fields.DescriptionClinique
			acte.DescriptionClinique = *fields.DescriptionClinique
		}
		if fields.MaterielUtilise != nil {
			oldValues["materiel_utilise"], newValues["materiel_utilise"] = acte.MaterielUtilise, *fields.MaterielUtilise
			acte.MaterielUtilise = *fields.MaterielUtilise
		}
		if fields.DureeActe != nil {
			oldValues["duree_acte"], newValues["duree_acte"] = acte.DureeActe, *fields.DureeActe
			acte.DureeActe = *fields.DureeActe
		}
		if fields.Modificateurs != nil {
			oldValues["modificateurs"], newValues["modificateurs"] = acte.Modificateurs, *fields.Modificateurs
			acte.Modificateurs = *fields.Modificateurs
		}
		if fields.Service != nil {
			oldValues["service"], newValues["service"] = acte.Service, *fields.Service
			acte.Service = *fields.Service
		}
		if fields.DateActe != nil {
			oldValues["date_acte"], newValues["date_acte"] = acte.DateActe, *fields.DateActe
			acte.DateActe = *fields.DateActe
		}

		if len(newValues) == 0 {
			return nil, apperrors.NewValidationError("no fields to update")
		}

		return &entities.AuditEntry{
			ActeID:        acte.ID,
			UtilisateurID: utilisateurID,
			Action:        entities.ActionUpdateActe,
			EntityType:    "acte",
			EntityID:      acte.ID,
			OldValues:     oldValues,
			NewValues:     newValues,
		}, nil
	})
}

// ApplySuggestion records the retained suggestion on a pending acte
func (s *ActeService) ApplySuggestion(ctx context.Context, acteID int64, code string, score float64, utilisateurID int64) (*entities.Acte, error) {
	if code == "" {
		return nil, apperrors.NewValidationError("suggestion code is required")
	}

	return s.transition(ctx, acteID, func(acte *entities.Acte) (*entities.AuditEntry, error) {
		entry := &entities.AuditEntry{
			ActeID:        acte.ID,
			UtilisateurID: utilisateurID,
			Action:        entities.ActionApplySuggestion,
			EntityType:    "acte",
			EntityID:      acte.ID,
			OldValues: map[string]any{
				"code_ccam_suggere": acte.CodeSuggere,
				"score_confiance":   acte.ScoreConfiance,
			},
			NewValues: map[string]any{
				"code_ccam_suggere": code,
				"score_confiance":   score,
			},
		}

		acte.CodeSuggere = code
		acte.ScoreConfiance = score
		return entry, nil
	})
}

// transition loads the acte under its lock, applies the mutation, writes
// it and appends the audit entry. The status write and the audit entry
// form one unit: a failed append reverts the write.
func (s *ActeService) transition(ctx context.Context, acteID int64, mutate func(*entities.Acte) (*entities.AuditEntry, error)) (*entities.Acte, error) {
	key := fmt.Sprintf("acte:%d", acteID)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	acte, err := s.repo.GetByID(ctx, acteID)
	if err != nil {
		return nil, err
	}

	if acte.IsFinalized() {
		return nil, apperrors.NewAlreadyFinalizedError(fmt.Sprintf("acte %d is already %s", acteID, acte.Statut))
	}

	before := *acte
	entry, err := mutate(acte)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, acte); err != nil {
		return nil, err
	}

	entryID, err := s.audit.Append(ctx, entry)
	if err != nil {
		// Revert the write so the mutation and its audit entry stay one
		// unit. A failed revert is logged; the lock is still held so no
		// concurrent transition observed the intermediate state.
		if revertErr := s.repo.Update(ctx, &before); revertErr != nil {
			observability.LoggerFromContext(ctx).Error().Err(revertErr).
				Int64("acte_id", acteID).Msg("failed to revert acte after audit append failure")
		}
		return nil, apperrors.NewInternalError("failed to append audit entry", err)
	}

	s.audit.Enqueue(entryID)
	return acte, nil
}

func (s *ActeService) confidenceThreshold() float64 {
	if s.cfg.ConfidenceThreshold <= 0 {
		return 50
	}
	return s.cfg.ConfidenceThreshold
}
