package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"

	"github.com/meditrace/ccam-assist/internal/domain/entities"
	"github.com/meditrace/ccam-assist/internal/domain/repositories"
	"github.com/meditrace/ccam-assist/internal/infrastructure/clients/postgres"
	apperrors "github.com/meditrace/ccam-assist/pkg/errors"
)

var catalogColumns = []any{
	"id", "code", "libelle",
	"chapitre", "section", "sous_section",
	"tarif_base", "tarif_ambulatoire", "tarif_hospitalier",
	"modificateurs_compatibles", "modificateurs_incompatibles", "contraintes",
	"version_ccam", "date_effet", "date_fin", "is_active",
}

// CatalogAdapter implements CatalogRepository over the local CCAM mirror
type CatalogAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewCatalogAdapter creates a new catalog adapter
func NewCatalogAdapter(client *postgres.Client) repositories.CatalogRepository {
	return &CatalogAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByCode retrieves a catalog entry by CCAM code
func (a *CatalogAdapter) GetByCode(ctx context.Context, code string) (*entities.CodeCCAM, error) {
	query, args, err := a.db.Select(catalogColumns...).
		From("codes_ccam").
		Where(goqu.Ex{"code": code}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	entry, err := scanCodeCCAM(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("CCAM code %s not found", code))
	}
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// ListActive returns every active catalog entry, ordered by code
func (a *CatalogAdapter) ListActive(ctx context.Context) ([]*entities.CodeCCAM, error) {
	query, args, err := a.db.Select(catalogColumns...).
		From("codes_ccam").
		Where(goqu.Ex{"is_active": true}).
		Order(goqu.C("code").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list catalog entries", err)
	}
	defer rows.Close()

	var entries []*entities.CodeCCAM
	for rows.Next() {
		entry, err := scanCodeCCAM(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func scanCodeCCAM(row rowScanner) (*entities.CodeCCAM, error) {
	entry := &entities.CodeCCAM{}
	var chapitre, section, sousSection sql.NullString
	var contraintes []byte
	var dateEffet, dateFin sql.NullTime

	err := row.Scan(
		&entry.ID,
		&entry.Code,
		&entry.Libelle,
		&chapitre,
		&section,
		&sousSection,
		&entry.TarifBase,
		&entry.TarifAmbulatoire,
		&entry.TarifHospitalier,
		pq.Array(&entry.ModificateursCompatibles),
		pq.Array(&entry.ModificateursIncompatibles),
		&contraintes,
		&entry.VersionCCAM,
		&dateEffet,
		&dateFin,
		&entry.IsActive,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to scan catalog entry", err)
	}

	entry.Chapitre = chapitre.String
	entry.Section = section.String
	entry.SousSection = sousSection.String
	if len(contraintes) > 0 {
		if err := json.Unmarshal(contraintes, &entry.Contraintes); err != nil {
			return nil, apperrors.NewInternalError("failed to unmarshal catalog constraints", err)
		}
	}
	if dateEffet.Valid {
		entry.DateEffet = &dateEffet.Time
	}
	if dateFin.Valid {
		entry.DateFin = &dateFin.Time
	}

	return entry, nil
}
