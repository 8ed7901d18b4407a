package providers

import (
	"context"

	"github.com/meditrace/ccam-assist/internal/domain/entities"
)

// LedgerProvider is the external immutable ledger collaborator, consumed
// through a submit/query interface. Consensus and mining are the ledger's
// concern, not ours.
type LedgerProvider interface {
	// Submit records a payload and returns the transaction reference.
	// Submitting the same entry id twice returns the original reference.
	Submit(ctx context.Context, payload *entities.AnchorPayload) (string, error)

	// Query returns the payload recorded under a transaction reference.
	Query(ctx context.Context, transactionRef string) (*entities.AnchorPayload, error)

	// ListForEntity returns the transaction references recorded for an
	// entity (acte) id, oldest first.
	ListForEntity(ctx context.Context, entityID int64) ([]string, error)
}
