//go:build ignore

// Seed loads a small CCAM catalog sample and a few demonstration actes
// for local development. Run with: go run scripts/seed.go
package main

import (
	"context"
	"log"
	"time"

	"github.com/meditrace/ccam-assist/internal/adapters/database"
	"github.com/meditrace/ccam-assist/internal/adapters/search"
	"github.com/meditrace/ccam-assist/internal/domain/entities"
	"github.com/meditrace/ccam-assist/internal/infrastructure/clients/postgres"
	"github.com/meditrace/ccam-assist/internal/infrastructure/clients/typesense"
	"github.com/meditrace/ccam-assist/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pgClient.Close()

	acteRepo := database.NewActeAdapter(pgClient)
	catalogRepo := database.NewCatalogAdapter(pgClient)

	actes := []*entities.Acte{
		{
			NumeroActe:          "ACT-2026-0001",
			PatientID:           "P-1001",
			TypeActe:            "chirurgie",
			DescriptionClinique: "Appendicectomie par coelioscopie sous anesthesie generale",
			DureeActe:           45,
			Modificateurs:       []string{"U"},
			Etablissement:       "CHU Lyon Sud",
			Service:             "chirurgie digestive",
			DateActe:            time.Now().AddDate(0, 0, -2),
			CreateurID:          1,
		},
		{
			NumeroActe:          "ACT-2026-0002",
			PatientID:           "P-1002",
			TypeActe:            "endoscopie",
			DescriptionClinique: "Fibroscopie oeso-gastro-duodenale avec biopsies",
			DureeActe:           20,
			Etablissement:       "CHU Lyon Sud",
			Service:             "hepato-gastro-enterologie",
			DateActe:            time.Now().AddDate(0, 0, -1),
			CreateurID:          1,
		},
	}

	for _, acte := range actes {
		acte.Statut = entities.StatutEnAttente
		if _, err := acteRepo.Create(ctx, acte); err != nil {
			log.Printf("Failed to seed acte %s: %v", acte.NumeroActe, err)
			continue
		}
		log.Printf("Seeded acte %s", acte.NumeroActe)
	}

	// Mirror whatever catalog rows exist into Typesense so label search
	// has something to return.
	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		log.Printf("Typesense unavailable, skipping index seed: %v", err)
		return
	}

	searchRepo := search.NewTypesenseAdapter(tsClient)
	if err := searchRepo.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to init search schema: %v", err)
	}

	codes, err := catalogRepo.ListActive(ctx)
	if err != nil {
		log.Fatalf("Failed to list catalog: %v", err)
	}
	for _, code := range codes {
		if err := searchRepo.Index(ctx, code); err != nil {
			log.Printf("Failed to index %s: %v", code.Code, err)
		}
	}
	log.Printf("Indexed %d catalog entries", len(codes))
}
