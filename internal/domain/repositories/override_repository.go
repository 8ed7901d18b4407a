package repositories

import (
	"context"
	"time"

	"github.com/meditrace/ccam-assist/internal/domain/entities"
)

// OverrideRepository defines persistence for human corrections.
type OverrideRepository interface {
	Create(ctx context.Context, override *entities.Override) (int64, error)
	GetByID(ctx context.Context, id int64) (*entities.Override, error)
	ListByActe(ctx context.Context, acteID int64) ([]*entities.Override, error)

	// Delete removes an override row. Only used to compensate a failed
	// audit append; a recorded override is otherwise never removed.
	Delete(ctx context.Context, id int64) error

	// SetTransactionHash fills the anchor reference once the ledger call
	// settles. The rest of the row stays immutable.
	SetTransactionHash(ctx context.Context, id int64, transactionHash string) error

	// Approve marks an override approved by the given user.
	Approve(ctx context.Context, id int64, approverID int64) error

	// Summary aggregates override statistics between two dates.
	Summary(ctx context.Context, from, to *time.Time) (*entities.OverrideSummary, error)
}
