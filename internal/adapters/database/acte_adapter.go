package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"

	"github.com/meditrace/ccam-assist/internal/domain/entities"
	"github.com/meditrace/ccam-assist/internal/domain/repositories"
	"github.com/meditrace/ccam-assist/internal/infrastructure/clients/postgres"
	apperrors "github.com/meditrace/ccam-assist/pkg/errors"
)

var acteColumns = []any{
	"id", "numero_acte", "patient_id",
	"type_acte", "description_clinique", "materiel_utilise", "duree_acte", "modificateurs",
	"code_ccam_suggere", "code_ccam_final", "score_confiance",
	"statut", "date_validation",
	"etablissement", "service", "date_acte",
	"createur_id", "validateur_id", "transaction_hash",
	"created_at", "updated_at",
}

// ActeAdapter implements ActeRepository
type ActeAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewActeAdapter creates a new acte adapter
func NewActeAdapter(client *postgres.Client) repositories.ActeRepository {
	return &ActeAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create creates a new acte and returns its serial id
func (a *ActeAdapter) Create(ctx context.Context, acte *entities.Acte) (int64, error) {
	now := time.Now().UTC()
	record := goqu.Record{
		"numero_acte":          acte.NumeroActe,
		"patient_id":           acte.PatientID,
		"type_acte":            acte.TypeActe,
		"description_clinique": acte.DescriptionClinique,
		"materiel_utilise":     sql.NullString{String: acte.MaterielUtilise, Valid: acte.MaterielUtilise != ""},
		"duree_acte":           acte.DureeActe,
		"modificateurs":        pq.Array(acte.Modificateurs),
		"code_ccam_suggere":    sql.NullString{String: acte.CodeSuggere, Valid: acte.CodeSuggere != ""},
		"code_ccam_final":      sql.NullString{String: acte.CodeFinal, Valid: acte.CodeFinal != ""},
		"score_confiance":      acte.ScoreConfiance,
		"statut":               acte.Statut,
		"etablissement":        acte.Etablissement,
		"service":              acte.Service,
		"date_acte":            acte.DateActe,
		"createur_id":          acte.CreateurID,
		"created_at":           now,
		"updated_at":           now,
	}

	query, args, err := a.db.Insert("actes").Rows(record).Returning("id").ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build insert query", err)
	}

	var id int64
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, apperrors.NewInternalError("failed to create acte", err)
	}

	acte.ID = id
	acte.CreatedAt = now
	acte.UpdatedAt = now
	return id, nil
}

// GetByID retrieves an acte by id
func (a *ActeAdapter) GetByID(ctx context.Context, id int64) (*entities.Acte, error) {
	return a.getByField(ctx, "id", id)
}

// GetByNumero retrieves an acte by its business number
func (a *ActeAdapter) GetByNumero(ctx context.Context, numero string) (*entities.Acte, error) {
	return a.getByField(ctx, "numero_acte", numero)
}

// Update persists the mutable fields of an acte
func (a *ActeAdapter) Update(ctx context.Context, acte *entities.Acte) error {
	record := goqu.Record{
		"type_acte":            acte.TypeActe,
		"description_clinique": acte.DescriptionClinique,
		"materiel_utilise":     sql.NullString{String: acte.MaterielUtilise, Valid: acte.MaterielUtilise != ""},
		"duree_acte":           acte.DureeActe,
		"modificateurs":        pq.Array(acte.Modificateurs),
		"code_ccam_suggere":    sql.NullString{String: acte.CodeSuggere, Valid: acte.CodeSuggere != ""},
		"code_ccam_final":      sql.NullString{String: acte.CodeFinal, Valid: acte.CodeFinal != ""},
		"score_confiance":      acte.ScoreConfiance,
		"statut":               acte.Statut,
		"date_validation":      acte.DateValidation,
		"service":              acte.Service,
		"date_acte":            acte.DateActe,
		"validateur_id":        acte.ValidateurID,
		"transaction_hash":     sql.NullString{String: acte.TransactionHash, Valid: acte.TransactionHash != ""},
		"updated_at":           time.Now().UTC(),
	}

	query, args, err := a.db.Update("actes").Set(record).Where(goqu.Ex{"id": acte.ID}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update acte", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to check update result", err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("acte %d not found", acte.ID))
	}

	return nil
}

// ListFinalizedSince returns finalized actes with id greater than the
// cursor, ordered by id
func (a *ActeAdapter) ListFinalizedSince(ctx context.Context, sinceID int64, limit int) ([]*entities.Acte, error) {
	if limit <= 0 {
		limit = 100
	}

	query, args, err := a.db.Select(acteColumns...).
		From("actes").
		Where(
			goqu.C("id").Gt(sinceID),
			goqu.C("statut").In(entities.StatutValide, entities.StatutRejete),
		).
		Order(goqu.C("id").Asc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list finalized actes", err)
	}
	defer rows.Close()

	var actes []*entities.Acte
	for rows.Next() {
		acte, err := scanActe(rows)
		if err != nil {
			return nil, err
		}
		actes = append(actes, acte)
	}

	return actes, rows.Err()
}

func (a *ActeAdapter) getByField(ctx context.Context, field string, value any) (*entities.Acte, error) {
	query, args, err := a.db.Select(acteColumns...).
		From("actes").
		Where(goqu.Ex{field: value}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	acte, err := scanActe(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("acte with %s %v not found", field, value))
	}
	if err != nil {
		return nil, err
	}

	return acte, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActe(row rowScanner) (*entities.Acte, error) {
	acte := &entities.Acte{}
	var materiel, codeSuggere, codeFinal, txHash sql.NullString
	var dateValidation sql.NullTime
	var validateurID sql.NullInt64

	err := row.Scan(
		&acte.ID,
		&acte.NumeroActe,
		&acte.PatientID,
		&acte.TypeActe,
		&acte.DescriptionClinique,
		&materiel,
		&acte.DureeActe,
		pq.Array(&acte.Modificateurs),
		&codeSuggere,
		&codeFinal,
		&acte.ScoreConfiance,
		&acte.Statut,
		&dateValidation,
		&acte.Etablissement,
		&acte.Service,
		&acte.DateActe,
		&acte.CreateurID,
		&validateurID,
		&txHash,
		&acte.CreatedAt,
		&acte.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to scan acte", err)
	}

	acte.MaterielUtilise = materiel.String
	acte.CodeSuggere = codeSuggere.String
	acte.CodeFinal = codeFinal.String
	acte.TransactionHash = txHash.String
	if dateValidation.Valid {
		acte.DateValidation = &dateValidation.Time
	}
	if validateurID.Valid {
		acte.ValidateurID = &validateurID.Int64
	}

	return acte, nil
}
