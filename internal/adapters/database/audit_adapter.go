package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/meditrace/ccam-assist/internal/domain/entities"
	"github.com/meditrace/ccam-assist/internal/domain/repositories"
	"github.com/meditrace/ccam-assist/internal/infrastructure/clients/postgres"
	apperrors "github.com/meditrace/ccam-assist/pkg/errors"
)

var auditColumns = []any{
	"id", "acte_id", "utilisateur_id",
	"action", "entity_type", "entity_id",
	"old_values", "new_values",
	"transaction_hash", "anchor_statut", "anchor_attempts",
	"timestamp",
}

// AuditAdapter implements AuditRepository
type AuditAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAuditAdapter creates a new audit adapter
func NewAuditAdapter(client *postgres.Client) repositories.AuditRepository {
	return &AuditAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Append inserts a new entry and returns its serial id
func (a *AuditAdapter) Append(ctx context.Context, entry *entities.AuditEntry) (int64, error) {
	oldValues, err := json.Marshal(entry.OldValues)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to marshal old values", err)
	}
	newValues, err := json.Marshal(entry.NewValues)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to marshal new values", err)
	}

	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	record := goqu.Record{
		"acte_id":         entry.ActeID,
		"utilisateur_id":  entry.UtilisateurID,
		"action":          entry.Action,
		"entity_type":     entry.EntityType,
		"entity_id":       entry.EntityID,
		"old_values":      oldValues,
		"new_values":      newValues,
		"anchor_statut":   entities.AnchorPending,
		"anchor_attempts": 0,
		"timestamp":       ts,
	}

	query, args, err := a.db.Insert("audit_entries").Rows(record).Returning("id").ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build insert query", err)
	}

	var id int64
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, apperrors.NewInternalError("failed to append audit entry", err)
	}

	entry.ID = id
	entry.AnchorStatut = entities.AnchorPending
	entry.Timestamp = ts
	return id, nil
}

// GetByID retrieves an audit entry by id
func (a *AuditAdapter) GetByID(ctx context.Context, id int64) (*entities.AuditEntry, error) {
	query, args, err := a.db.Select(auditColumns...).
		From("audit_entries").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	entry, err := scanAuditEntry(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("audit entry %d not found", id))
	}
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// ListByActe returns the audit trail of an acte ordered by entry id,
// plus the total count before pagination
func (a *AuditAdapter) ListByActe(ctx context.Context, acteID int64, filter entities.AuditTrailFilter) ([]*entities.AuditEntry, int, error) {
	conditions := []goqu.Expression{goqu.Ex{"acte_id": acteID}}
	if filter.Action != "" {
		conditions = append(conditions, goqu.Ex{"action": filter.Action})
	}
	if filter.DateDebut != nil {
		conditions = append(conditions, goqu.C("timestamp").Gte(*filter.DateDebut))
	}
	if filter.DateFin != nil {
		conditions = append(conditions, goqu.C("timestamp").Lte(*filter.DateFin))
	}

	countQuery, countArgs, err := a.db.Select(goqu.COUNT("*")).
		From("audit_entries").
		Where(conditions...).
		ToSQL()
	if err != nil {
		return nil, 0, apperrors.NewInternalError("failed to build count query", err)
	}

	var total int
	if err := a.client.DB().QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, apperrors.NewInternalError("failed to count audit entries", err)
	}

	ds := a.db.Select(auditColumns...).
		From("audit_entries").
		Where(conditions...).
		Order(goqu.C("id").Asc())
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, 0, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, apperrors.NewInternalError("failed to list audit entries", err)
	}
	defer rows.Close()

	var entries []*entities.AuditEntry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}

	return entries, total, rows.Err()
}

// SetAnchored fills the transaction hash and flips the anchor statut.
// Rows already anchored are left untouched, which makes retried anchor
// confirmations harmless.
func (a *AuditAdapter) SetAnchored(ctx context.Context, id int64, transactionHash string) error {
	query, args, err := a.db.Update("audit_entries").
		Set(goqu.Record{
			"transaction_hash": transactionHash,
			"anchor_statut":    entities.AnchorAnchored,
		}).
		Where(
			goqu.Ex{"id": id},
			goqu.C("anchor_statut").Neq(entities.AnchorAnchored),
		).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to mark audit entry anchored", err)
	}

	return nil
}

// MarkAbandoned flips the anchor statut after the retry budget is spent
func (a *AuditAdapter) MarkAbandoned(ctx context.Context, id int64) error {
	query, args, err := a.db.Update("audit_entries").
		Set(goqu.Record{"anchor_statut": entities.AnchorAbandoned}).
		Where(
			goqu.Ex{"id": id},
			goqu.C("anchor_statut").Eq(entities.AnchorPending),
		).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to mark audit entry abandoned", err)
	}

	return nil
}

// IncrementAnchorAttempts bumps the attempt counter
func (a *AuditAdapter) IncrementAnchorAttempts(ctx context.Context, id int64) error {
	query, args, err := a.db.Update("audit_entries").
		Set(goqu.Record{"anchor_attempts": goqu.L("anchor_attempts + 1")}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to increment anchor attempts", err)
	}

	return nil
}

// ListUnanchored returns pending entries oldest first
func (a *AuditAdapter) ListUnanchored(ctx context.Context, limit int) ([]*entities.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	query, args, err := a.db.Select(auditColumns...).
		From("audit_entries").
		Where(goqu.Ex{"anchor_statut": entities.AnchorPending}).
		Order(goqu.C("id").Asc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list unanchored entries", err)
	}
	defer rows.Close()

	var entries []*entities.AuditEntry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func scanAuditEntry(row rowScanner) (*entities.AuditEntry, error) {
	entry := &entities.AuditEntry{}
	var oldValues, newValues []byte
	var txHash sql.NullString

	err := row.Scan(
		&entry.ID,
		&entry.ActeID,
		&entry.UtilisateurID,
		&entry.Action,
		&entry.EntityType,
		&entry.EntityID,
		&oldValues,
		&newValues,
		&txHash,
		&entry.AnchorStatut,
		&entry.AnchorAttempts,
		&entry.Timestamp,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to scan audit entry", err)
	}

	entry.TransactionHash = txHash.String
	if len(oldValues) > 0 {
		if err := json.Unmarshal(oldValues, &entry.OldValues); err != nil {
			return nil, apperrors.NewInternalError("failed to unmarshal old values", err)
		}
	}
	if len(newValues) > 0 {
		if err := json.Unmarshal(newValues, &entry.NewValues); err != nil {
			return nil, apperrors.NewInternalError("failed to unmarshal new values", err)
		}
	}

	return entry, nil
}
