package services

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/meditrace/ccam-assist/internal/domain/repositories"
	"github.com/meditrace/ccam-assist/internal/domain/rules"
)

// CatalogService loads the CCAM reference catalog and exposes an
// immutable rule engine snapshot built from it. Refresh swaps the
// snapshot atomically; readers holding the previous engine keep a
// consistent view.
type CatalogService struct {
	repo repositories.CatalogRepository

	mu     sync.RWMutex
	engine *rules.Engine
}

// NewCatalogService creates a new catalog service
func NewCatalogService(repo repositories.CatalogRepository) *CatalogService {
	return &CatalogService{
		repo:   repo,
		engine: rules.NewEngine(nil),
	}
}

// Refresh reloads the active catalog and rebuilds the engine snapshot
func (s *CatalogService) Refresh(ctx context.Context) error {
	codes, err := s.repo.ListActive(ctx)
	if err != nil {
		return err
	}

	engine := rules.NewEngine(codes)

	s.mu.Lock()
	s.engine = engine
	s.mu.Unlock()

	log.Info().Int("codes", len(codes)).Msg("catalog snapshot refreshed")
	return nil
}

// Engine returns the current rule engine snapshot
func (s *CatalogService) Engine() *rules.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}
