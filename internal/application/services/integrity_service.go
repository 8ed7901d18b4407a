package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/meditrace/ccam-assist/internal/domain/entities"
	"github.com/meditrace/ccam-assist/internal/domain/providers"
	"github.com/meditrace/ccam-assist/internal/domain/repositories"
	"github.com/meditrace/ccam-assist/internal/infrastructure/observability"
	apperrors "github.com/meditrace/ccam-assist/pkg/errors"
)

// IntegrityService reconciles the local audit trail of an acte against
// what the ledger recorded. Divergences are reported and published,
// never auto-corrected: the local row may have been tampered with, or
// the anchoring may have raced a partial failure, and only an operator
// can tell which.
type IntegrityService struct {
	acteRepo  repositories.ActeRepository
	auditRepo repositories.AuditRepository
	ledger    providers.LedgerProvider
	eventBus  providers.EventBus
	metrics   *observability.Metrics
}

// NewIntegrityService creates a new integrity service. eventBus and
// metrics may be nil.
func NewIntegrityService(
	acteRepo repositories.ActeRepository,
	auditRepo repositories.AuditRepository,
	ledger providers.LedgerProvider,
	eventBus providers.EventBus,
	metrics *observability.Metrics,
) *IntegrityService {
	return &IntegrityService{
		acteRepo:  acteRepo,
		auditRepo: auditRepo,
		ledger:    ledger,
		eventBus:  eventBus,
		metrics:   metrics,
	}
}

// Reconcile replays the local audit trail of one acte and compares it
// field by field against the ledger's record of the same entries.
func (s *IntegrityService) Reconcile(ctx context.Context, acteID int64) (*entities.ReconcileReport, error) {
	acte, err := s.acteRepo.GetByID(ctx, acteID)
	if err != nil {
		return nil, err
	}

	entries, _, err := s.auditRepo.ListByActe(ctx, acteID, entities.AuditTrailFilter{})
	if err != nil {
		return nil, err
	}

	report := &entities.ReconcileReport{
		ActeID:    acteID,
		CheckedAt: time.Now().UTC(),
	}

	// Local entries indexed by the transaction that anchored them.
	anchoredByRef := make(map[string]*entities.AuditEntry)
	finalCode := ""
	for _, entry := range entries {
		if entry.AnchorStatut == entities.AnchorAnchored && entry.TransactionHash != "" {
			anchoredByRef[entry.TransactionHash] = entry
		}
		if code := stringValue(entry.NewValues, "code_ccam_final"); code != "" {
			finalCode = code
		}
	}

	refs, err := s.ledger.ListForEntity(ctx, acteID)
	if err != nil {
		return nil, err
	}

	for _, ref := range refs {
		payload, err := s.ledger.Query(ctx, ref)
		if err != nil {
			return nil, err
		}

		entry, ok := anchoredByRef[ref]
		if !ok {
			report.Divergences = append(report.Divergences, entities.Divergence{
				EntryID: payload.EntryID,
				Field:   "transaction",
				Local:   "",
				Ledger:  ref,
			})
			continue
		}
		delete(anchoredByRef, ref)

		report.Divergences = append(report.Divergences, compareEntry(entry, payload)...)
	}

	// Anchored locally but unknown to the ledger.
	for ref, entry := range anchoredByRef {
		report.Divergences = append(report.Divergences, entities.Divergence{
			EntryID: entry.ID,
			Field:   "transaction",
			Local:   ref,
			Ledger:  "",
		})
	}

	// The replayed final code must match the acte row.
	if acte.IsFinalized() && finalCode != "" && finalCode != acte.CodeFinal {
		report.Divergences = append(report.Divergences, entities.Divergence{
			Field:  "code_ccam_final",
			Local:  acte.CodeFinal,
			Ledger: finalCode,
		})
	}

	report.Verified = len(report.Divergences) == 0
	if !report.Verified {
		s.publishDivergence(ctx, report)
	}

	return report, nil
}

// Verify reconciles one acte and fails when any divergence is found,
// for callers that need a hard yes or no before exporting the record.
func (s *IntegrityService) Verify(ctx context.Context, acteID int64) error {
	report, err := s.Reconcile(ctx, acteID)
	if err != nil {
		return err
	}
	if !report.Verified {
		return apperrors.NewIntegrityDivergenceError(fmt.Sprintf(
			"acte %d diverges from the ledger in %d field(s)", acteID, len(report.Divergences)))
	}
	return nil
}

// SweepFinalized reconciles recently finalized actes starting after the
// cursor and returns the highest acte id seen, for the next sweep.
func (s *IntegrityService) SweepFinalized(ctx context.Context, sinceID int64, limit int) (int64, error) {
	actes, err := s.acteRepo.ListFinalizedSince(ctx, sinceID, limit)
	if err != nil {
		return sinceID, err
	}

	cursor := sinceID
	for _, acte := range actes {
		report, err := s.Reconcile(ctx, acte.ID)
		if err != nil {
			log.Error().Err(err).Int64("acte_id", acte.ID).Msg("reconciliation failed")
			continue
		}
		if !report.Verified {
			log.Warn().Int64("acte_id", acte.ID).Int("divergences", len(report.Divergences)).
				Msg("reconciliation found divergences")
		}
		cursor = acte.ID
	}

	return cursor, nil
}

func (s *IntegrityService) publishDivergence(ctx context.Context, report *entities.ReconcileReport) {
	if s.metrics != nil {
		s.metrics.DivergenceCount.Add(ctx, int64(len(report.Divergences)))
	}
	if s.eventBus == nil {
		return
	}

	details := make(map[string]any, len(report.Divergences))
	for i, d := range report.Divergences {
		details[fmt.Sprintf("divergence_%d", i)] = fmt.Sprintf("%s: local=%q ledger=%q", d.Field, d.Local, d.Ledger)
	}

	event := &entities.AuditEvent{
		ID:        uuid.NewString(),
		Type:      entities.EventIntegrityDivergence,
		ActeID:    report.ActeID,
		Message:   fmt.Sprintf("reconciliation found %d divergence(s) for acte %d", len(report.Divergences), report.ActeID),
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
	if err := s.eventBus.Publish(ctx, providers.AlertsChannel, event); err != nil {
		log.Error().Err(err).Int64("acte_id", report.ActeID).Msg("failed to publish divergence alert")
	}
}

// compareEntry checks every anchored field of one audit entry against
// the ledger payload.
func compareEntry(entry *entities.AuditEntry, payload *entities.AnchorPayload) []entities.Divergence {
	var divergences []entities.Divergence
	add := func(field, local, ledger string) {
		if local != ledger {
			divergences = append(divergences, entities.Divergence{
				EntryID: entry.ID,
				Field:   field,
				Local:   local,
				Ledger:  ledger,
			})
		}
	}

	add("action", entry.Action, payload.ActionType)
	add("code_after", stringValue(entry.NewValues, "code_ccam_final", "code_ccam_suggere", "code_ccam_override"), payload.CodeAfter)
	add("actor_id", fmt.Sprintf("%d", entry.UtilisateurID), fmt.Sprintf("%d", payload.ActorID))
	add("justification", stringValue(entry.NewValues, "justification", "raison"), payload.Justification)
	add("timestamp", entry.Timestamp.UTC().Format(time.RFC3339), payload.Timestamp.UTC().Format(time.RFC3339))

	return divergences
}
