package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/meditrace/ccam-assist/internal/domain/entities"
	"github.com/meditrace/ccam-assist/internal/domain/providers"
	"github.com/meditrace/ccam-assist/internal/domain/repositories"
	apperrors "github.com/meditrace/ccam-assist/pkg/errors"
)

// AuditService owns the append-only audit trail and its anchoring to the
// external ledger. Local appends are synchronous and durable; anchoring
// is asynchronous and never fails the originating operation.
type AuditService struct {
	repo      repositories.AuditRepository
	overrides repositories.OverrideRepository
	ledger    providers.LedgerProvider
	queue     chan int64
}

// NewAuditService creates a new audit service. queueSize bounds the
// anchoring backlog; entries that do not fit are picked up by the sweep.
// overrides may be nil when no override rows need their anchor reference.
func NewAuditService(repo repositories.AuditRepository, overrides repositories.OverrideRepository, ledger providers.LedgerProvider, queueSize int) *AuditService {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &AuditService{
		repo:      repo,
		overrides: overrides,
		ledger:    ledger,
		queue:     make(chan int64, queueSize),
	}
}

// Append durably inserts a new audit entry and returns its serial id
func (s *AuditService) Append(ctx context.Context, entry *entities.AuditEntry) (int64, error) {
	if entry.ActeID == 0 || entry.Action == "" {
		return 0, apperrors.NewValidationError("audit entry requires acte_id and action")
	}
	return s.repo.Append(ctx, entry)
}

// Anchor submits one entry to the ledger. Idempotent: an entry that is
// already anchored returns its existing reference without a second
// submission; the payload's entry id lets the ledger deduplicate
// submissions that raced a crash.
func (s *AuditService) Anchor(ctx context.Context, entryID int64) (string, error) {
	entry, err := s.repo.GetByID(ctx, entryID)
	if err != nil {
		return "", err
	}

	if entry.AnchorStatut == entities.AnchorAnchored {
		return entry.TransactionHash, nil
	}

	if err := s.repo.IncrementAnchorAttempts(ctx, entryID); err != nil {
		log.Warn().Err(err).Int64("entry_id", entryID).Msg("failed to bump anchor attempts")
	}

	ref, err := s.ledger.Submit(ctx, anchorPayload(entry))
	if err != nil {
		return "", err
	}

	if err := s.repo.SetAnchored(ctx, entryID, ref); err != nil {
		return "", apperrors.NewAnchorError("ledger accepted entry but local anchor status update failed", err)
	}

	if entry.EntityType == "override" && s.overrides != nil {
		if err := s.overrides.SetTransactionHash(ctx, entry.EntityID, ref); err != nil {
			log.Warn().Err(err).Int64("override_id", entry.EntityID).Msg("failed to record override anchor reference")
		}
	}

	return ref, nil
}

// Enqueue hands an entry id to the anchor worker without blocking. A
// full queue is not an error; the periodic sweep re-enqueues pending
// entries.
func (s *AuditService) Enqueue(entryID int64) {
	select {
	case s.queue <- entryID:
	default:
		log.Warn().Int64("entry_id", entryID).Msg("anchor queue full, entry left for sweep")
	}
}

// Trail returns the audit trail of an acte with the total count before
// pagination
func (s *AuditService) Trail(ctx context.Context, acteID int64, filter entities.AuditTrailFilter) ([]*entities.AuditEntry, int, error) {
	return s.repo.ListByActe(ctx, acteID, filter)
}

// GetEntry retrieves one audit entry by id
func (s *AuditService) GetEntry(ctx context.Context, entryID int64) (*entities.AuditEntry, error) {
	return s.repo.GetByID(ctx, entryID)
}

func anchorPayload(entry *entities.AuditEntry) *entities.AnchorPayload {
	return &entities.AnchorPayload{
		EntryID:       entry.ID,
		EntityID:      entry.ActeID,
		ActionType:    entry.Action,
		CodeBefore:    stringValue(entry.OldValues, "code_ccam_final", "code_ccam_suggere", "code_ccam_original"),
		CodeAfter:     stringValue(entry.NewValues, "code_ccam_final", "code_ccam_suggere", "code_ccam_override"),
		ActorID:       entry.UtilisateurID,
		Justification: stringValue(entry.NewValues, "justification", "raison"),
		Timestamp:     entry.Timestamp,
	}
}

// stringValue returns the first present key of the map rendered as a
// string.
func stringValue(values map[string]any, keys ...string) string {
	for _, key := range keys {
		if raw, ok := values[key]; ok {
			if str, ok := raw.(string); ok {
				return str
			}
			return fmt.Sprintf("%v", raw)
		}
	}
	return ""
}
