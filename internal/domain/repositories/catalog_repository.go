package repositories

import (
	"context"

	"github.com/meditrace/ccam-assist/internal/domain/entities"
)

// CatalogRepository reads the CCAM reference catalog. Writes belong to
// the external catalog sync process.
type CatalogRepository interface {
	GetByCode(ctx context.Context, code string) (*entities.CodeCCAM, error)
	ListActive(ctx context.Context) ([]*entities.CodeCCAM, error)
}

// CatalogSearchRepository is the full-text label search over the catalog,
// used to attach candidate code hints to completion requests.
type CatalogSearchRepository interface {
	InitSchema(ctx context.Context) error
	Index(ctx context.Context, code *entities.CodeCCAM) error
	SearchByLibelle(ctx context.Context, query string, limit int) ([]*entities.CodeCCAM, error)
}
