package search

import (
	"context"
	"fmt"
	"strconv"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/meditrace/ccam-assist/internal/domain/entities"
	"github.com/meditrace/ccam-assist/internal/domain/repositories"
	tsclient "github.com/meditrace/ccam-assist/internal/infrastructure/clients/typesense"
)

// TypesenseAdapter implements catalog label search using Typesense.
// Only the searchable subset of a catalog row is indexed; callers that
// need the full row go back to the catalog repository by code.
type TypesenseAdapter struct {
	client *tsclient.Client
}

// Ensure TypesenseAdapter implements CatalogSearchRepository
var _ repositories.CatalogSearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// InitSchema ensures the collection exists
func (a *TypesenseAdapter) InitSchema(ctx context.Context) error {
	_, err := a.client.Client().Collection(tsclient.CodesCollection).Retrieve(ctx)
	if err == nil {
		return nil // Collection exists
	}

	schema := &api.CollectionSchema{
		Name: tsclient.CodesCollection,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "code", Type: "string"},
			{Name: "libelle", Type: "string"},
			{Name: "chapitre", Type: "string", Facet: pointer.True()},
			{Name: "section", Type: "string", Facet: pointer.True()},
			{Name: "is_active", Type: "bool"},
			{Name: "tarif_base", Type: "float"},
		},
	}

	_, err = a.client.Client().Collections().Create(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create typesense collection: %w", err)
	}

	return nil
}

// Index indexes a catalog entry
func (a *TypesenseAdapter) Index(ctx context.Context, code *entities.CodeCCAM) error {
	document := map[string]interface{}{
		"id":         strconv.FormatInt(code.ID, 10),
		"code":       code.Code,
		"libelle":    code.Libelle,
		"chapitre":   code.Chapitre,
		"section":    code.Section,
		"is_active":  code.IsActive,
		"tarif_base": code.TarifBase,
	}

	_, err := a.client.Client().Collection(tsclient.CodesCollection).Documents().Upsert(ctx, document)
	if err != nil {
		return fmt.Errorf("failed to index catalog entry: %w", err)
	}

	return nil
}

// SearchByLibelle searches active catalog entries by label text
func (a *TypesenseAdapter) SearchByLibelle(ctx context.Context, query string, limit int) ([]*entities.CodeCCAM, error) {
	if limit <= 0 {
		limit = 10
	}

	searchParams := &api.SearchCollectionParams{
		Q:        pointer.String(query),
		QueryBy:  pointer.String("libelle,code"),
		FilterBy: pointer.String("is_active:=true"),
		PerPage:  pointer.Int(limit),
	}

	result, err := a.client.Client().Collection(tsclient.CodesCollection).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, fmt.Errorf("failed to search catalog: %w", err)
	}

	entries := []*entities.CodeCCAM{}
	if result.Hits == nil {
		return entries, nil
	}

	for _, hit := range *result.Hits {
		doc := *hit.Document

		entry := &entities.CodeCCAM{}
		if val, ok := doc["id"].(string); ok {
			if id, err := strconv.ParseInt(val, 10, 64); err == nil {
				entry.ID = id
			}
		}
		if val, ok := doc["code"].(string); ok {
			entry.Code = val
		}
		if val, ok := doc["libelle"].(string); ok {
			entry.Libelle = val
		}
		if val, ok := doc["chapitre"].(string); ok {
			entry.Chapitre = val
		}
		if val, ok := doc["section"].(string); ok {
			entry.Section = val
		}
		if val, ok := doc["is_active"].(bool); ok {
			entry.IsActive = val
		}
		if val, ok := doc["tarif_base"].(float64); ok {
			entry.TarifBase = val
		}

		entries = append(entries, entry)
	}

	return entries, nil
}
