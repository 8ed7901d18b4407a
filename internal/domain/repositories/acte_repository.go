package repositories

import (
	"context"

	"github.com/meditrace/ccam-assist/internal/domain/entities"
)

// ActeRepository defines persistence for actes.
type ActeRepository interface {
	Create(ctx context.Context, acte *entities.Acte) (int64, error)
	GetByID(ctx context.Context, id int64) (*entities.Acte, error)
	GetByNumero(ctx context.Context, numero string) (*entities.Acte, error)

	// Update persists the mutable fields of an acte (clinical fields,
	// codes, score, statut, validation metadata, anchor ref).
	Update(ctx context.Context, acte *entities.Acte) error

	// ListFinalizedSince returns actes finalized after the given cursor
	// id, used by the periodic integrity sweep.
	ListFinalizedSince(ctx context.Context, sinceID int64, limit int) ([]*entities.Acte, error)
}
