package repositories

import (
	"context"

	"github.com/meditrace/ccam-assist/internal/domain/entities"
)

// AuditRepository defines persistence for the append-only audit trail.
// Rows are never updated after creation; only the anchor fields change,
// through the dedicated methods below.
type AuditRepository interface {
	// Append inserts a new entry and returns its serial id. Durable
	// before return.
	Append(ctx context.Context, entry *entities.AuditEntry) (int64, error)

	GetByID(ctx context.Context, id int64) (*entities.AuditEntry, error)
	ListByActe(ctx context.Context, acteID int64, filter entities.AuditTrailFilter) ([]*entities.AuditEntry, int, error)

	// SetAnchored fills the transaction hash and flips the anchor statut
	// to anchored. Idempotent on an already anchored row.
	SetAnchored(ctx context.Context, id int64, transactionHash string) error

	// MarkAbandoned flips the anchor statut to anchor_abandoned after the
	// retry budget is exhausted.
	MarkAbandoned(ctx context.Context, id int64) error

	// IncrementAnchorAttempts bumps the attempt counter for observability.
	IncrementAnchorAttempts(ctx context.Context, id int64) error

	// ListUnanchored returns pending entries for the background sweep,
	// oldest first.
	ListUnanchored(ctx context.Context, limit int) ([]*entities.AuditEntry, error)
}
