package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/meditrace/ccam-assist/internal/domain/entities"
	"github.com/meditrace/ccam-assist/internal/domain/repositories"
	"github.com/meditrace/ccam-assist/internal/infrastructure/clients/postgres"
	apperrors "github.com/meditrace/ccam-assist/pkg/errors"
)

var overrideColumns = []any{
	"id", "acte_id", "utilisateur_id",
	"code_ccam_original", "code_ccam_override", "justification", "type_override",
	"is_approved", "approved_by", "transaction_hash",
	"created_at",
}

// OverrideAdapter implements OverrideRepository
type OverrideAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewOverrideAdapter creates a new override adapter
func NewOverrideAdapter(client *postgres.Client) repositories.OverrideRepository {
	return &OverrideAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create creates a new override and returns its serial id
func (a *OverrideAdapter) Create(ctx context.Context, override *entities.Override) (int64, error) {
	now := time.Now().UTC()
	record := goqu.Record{
		"acte_id":            override.ActeID,
		"utilisateur_id":     override.UtilisateurID,
		"code_ccam_original": override.CodeOriginal,
		"code_ccam_override": override.CodeOverride,
		"justification":      override.Justification,
		"type_override":      override.TypeOverride,
		"is_approved":        override.IsApproved,
		"created_at":         now,
	}

	query, args, err := a.db.Insert("overrides").Rows(record).Returning("id").ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build insert query", err)
	}

	var id int64
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, apperrors.NewInternalError("failed to create override", err)
	}

	override.ID = id
	override.CreatedAt = now
	return id, nil
}

// GetByID retrieves an override by id
func (a *OverrideAdapter) GetByID(ctx context.Context, id int64) (*entities.Override, error) {
	query, args, err := a.db.Select(overrideColumns...).
		From("overrides").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	override, err := scanOverride(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("override %d not found", id))
	}
	if err != nil {
		return nil, err
	}

	return override, nil
}

// ListByActe returns the overrides of an acte, newest first
func (a *OverrideAdapter) ListByActe(ctx context.Context, acteID int64) ([]*entities.Override, error) {
	query, args, err := a.db.Select(overrideColumns...).
		From("overrides").
		Where(goqu.Ex{"acte_id": acteID}).
		Order(goqu.C("created_at").Desc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list overrides", err)
	}
	defer rows.Close()

	var overrides []*entities.Override
	for rows.Next() {
		override, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, override)
	}

	return overrides, rows.Err()
}

// Delete removes an override row, compensating a failed audit append
func (a *OverrideAdapter) Delete(ctx context.Context, id int64) error {
	query, args, err := a.db.Delete("overrides").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to delete override", err)
	}

	return nil
}

// SetTransactionHash fills the anchor reference once the ledger settles
func (a *OverrideAdapter) SetTransactionHash(ctx context.Context, id int64, transactionHash string) error {
	query, args, err := a.db.Update("overrides").
		Set(goqu.Record{"transaction_hash": transactionHash}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to set override transaction hash", err)
	}

	return nil
}

// Approve marks an override approved by the given user
func (a *OverrideAdapter) Approve(ctx context.Context, id int64, approverID int64) error {
	query, args, err := a.db.Update("overrides").
		Set(goqu.Record{
			"is_approved": true,
			"approved_by": approverID,
		}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to approve override", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to check update result", err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("override %d not found", id))
	}

	return nil
}

// Summary aggregates override statistics between two dates
func (a *OverrideAdapter) Summary(ctx context.Context, from, to *time.Time) (*entities.OverrideSummary, error) {
	conditions := []goqu.Expression{}
	if from != nil {
		conditions = append(conditions, goqu.C("created_at").Gte(*from))
	}
	if to != nil {
		conditions = append(conditions, goqu.C("created_at").Lte(*to))
	}

	query, args, err := a.db.Select("type_override", "is_approved", goqu.COUNT("*").As("total")).
		From("overrides").
		Where(conditions...).
		GroupBy("type_override", "is_approved").
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to summarize overrides", err)
	}
	defer rows.Close()

	summary := &entities.OverrideSummary{ParType: make(map[string]int)}
	for rows.Next() {
		var typeOverride string
		var approved bool
		var count int
		if err := rows.Scan(&typeOverride, &approved, &count); err != nil {
			return nil, apperrors.NewInternalError("failed to scan override summary", err)
		}

		summary.Total += count
		summary.ParType[typeOverride] += count
		if approved {
			summary.Approuves += count
		} else {
			summary.EnAttente += count
		}
	}

	return summary, rows.Err()
}

func scanOverride(row rowScanner) (*entities.Override, error) {
	override := &entities.Override{}
	var approvedBy sql.NullInt64
	var txHash sql.NullString

	err := row.Scan(
		&override.ID,
		&override.ActeID,
		&override.UtilisateurID,
		&override.CodeOriginal,
		&override.CodeOverride,
		&override.Justification,
		&override.TypeOverride,
		&override.IsApproved,
		&approvedBy,
		&txHash,
		&override.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to scan override", err)
	}

	if approvedBy.Valid {
		override.ApprovedBy = &approvedBy.Int64
	}
	override.TransactionHash = txHash.String

	return override, nil
}
