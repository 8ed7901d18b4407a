package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/meditrace/ccam-assist/internal/domain/entities"
	"github.com/meditrace/ccam-assist/internal/domain/providers"
	"github.com/meditrace/ccam-assist/internal/infrastructure/observability"
	"github.com/meditrace/ccam-assist/pkg/config"
	"github.com/meditrace/ccam-assist/pkg/retry"
)

// AnchorWorker drains the audit service's anchor queue. Each entry gets
// a bounded retry budget with exponential backoff; an exhausted budget
// marks the entry anchor_abandoned and publishes an operator alert.
// A periodic sweep re-enqueues entries that are still pending, which
// covers queue overflow and crashes between append and anchor.
type AnchorWorker struct {
	audit    *AuditService
	eventBus providers.EventBus
	cfg      config.AnchorConfig
	metrics  *observability.Metrics
}

// NewAnchorWorker creates a new anchor worker. eventBus and metrics may
// be nil.
func NewAnchorWorker(audit *AuditService, eventBus providers.EventBus, cfg config.AnchorConfig, metrics *observability.Metrics) *AnchorWorker {
	return &AnchorWorker{
		audit:    audit,
		eventBus: eventBus,
		cfg:      cfg,
		metrics:  metrics,
	}
}

// Run consumes the queue and the sweep ticker until ctx is done
func (w *AnchorWorker) Run(ctx context.Context) {
	sweepInterval := time.Duration(w.cfg.SweepIntervalSeconds) * time.Second
	if sweepInterval <= 0 {
		sweepInterval = 5 * time.Minute
	}

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	log.Info().Dur("sweep_interval", sweepInterval).Msg("anchor worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("anchor worker stopped")
			return
		case entryID := <-w.audit.queue:
			w.anchorWithRetry(ctx, entryID)
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// anchorWithRetry runs the bounded anchor attempt loop for one entry
func (w *AnchorWorker) anchorWithRetry(ctx context.Context, entryID int64) {
	initialDelay := time.Duration(w.cfg.InitialDelaySeconds) * time.Second
	retryConfig := retry.AnchorConfig(w.cfg.MaxAttempts, initialDelay)
	retryConfig.OnRetry = func(attempt int, err error, nextDelay time.Duration) {
		log.Warn().Err(err).Int64("entry_id", entryID).Int("attempt", attempt).
			Dur("next_delay", nextDelay).Msg("anchor attempt failed, retrying")
	}

	err := retry.Do(ctx, retryConfig, func() error {
		if w.metrics != nil {
			w.metrics.AnchorAttemptCount.Add(ctx, 1)
		}
		_, err := w.audit.Anchor(ctx, entryID)
		return err
	})
	if err == nil {
		return
	}
	if ctx.Err() != nil {
		// Shutting down; the sweep of the next run picks the entry up.
		return
	}

	w.abandon(ctx, entryID, err)
}

// abandon marks the entry and publishes the operator alert. Both
// effects are mandatory so an abandoned anchor is never silent.
func (w *AnchorWorker) abandon(ctx context.Context, entryID int64, cause error) {
	log.Error().Err(cause).Int64("entry_id", entryID).Msg("anchor retry budget exhausted, abandoning")

	if err := w.audit.repo.MarkAbandoned(ctx, entryID); err != nil {
		log.Error().Err(err).Int64("entry_id", entryID).Msg("failed to mark entry abandoned")
	}
	if w.metrics != nil {
		w.metrics.AnchorAbandoned.Add(ctx, 1)
	}

	if w.eventBus == nil {
		return
	}

	entry, err := w.audit.GetEntry(ctx, entryID)
	acteID := int64(0)
	if err == nil {
		acteID = entry.ActeID
	}

	event := &entities.AuditEvent{
		ID:        uuid.NewString(),
		Type:      entities.EventAnchorAbandoned,
		ActeID:    acteID,
		EntryID:   entryID,
		Message:   fmt.Sprintf("anchoring abandoned for audit entry %d: %v", entryID, cause),
		Timestamp: time.Now().UTC(),
	}
	if err := w.eventBus.Publish(ctx, providers.AlertsChannel, event); err != nil {
		log.Error().Err(err).Int64("entry_id", entryID).Msg("failed to publish abandon alert")
	}
}

// sweep re-enqueues entries still pending, oldest first
func (w *AnchorWorker) sweep(ctx context.Context) {
	entries, err := w.audit.repo.ListUnanchored(ctx, 100)
	if err != nil {
		log.Error().Err(err).Msg("anchor sweep failed to list pending entries")
		return
	}
	if len(entries) == 0 {
		return
	}

	log.Info().Int("pending", len(entries)).Msg("anchor sweep re-enqueueing pending entries")
	for _, entry := range entries {
		w.audit.Enqueue(entry.ID)
	}
}
