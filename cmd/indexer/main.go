package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/meditrace/ccam-assist/internal/adapters/database"
	"github.com/meditrace/ccam-assist/internal/adapters/search"
	"github.com/meditrace/ccam-assist/internal/infrastructure/clients/postgres"
	"github.com/meditrace/ccam-assist/internal/infrastructure/clients/typesense"
	"github.com/meditrace/ccam-assist/pkg/config"
	"github.com/meditrace/ccam-assist/pkg/secrets"
)

// The indexer mirrors the active CCAM catalog into Typesense so the
// suggestion engine can attach candidate code hints to provider prompts.
func main() {
	var intervalFlag string
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.Parse()

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	var err error
	if intervalValue != "" {
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatalf("Invalid interval %q: %v", intervalValue, err)
		}
		if interval <= 0 {
			log.Fatalf("Interval must be greater than zero")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := secrets.ApplyVaultSecrets(ctx, secrets.LoadVaultConfigFromEnv("")); err != nil {
		log.Fatalf("Failed to load secrets from Vault: %v", err)
	}

	for {
		if err := indexOnce(ctx); err != nil {
			log.Printf("Reindex failed: %v", err)
		}

		if interval <= 0 {
			break
		}

		log.Printf("Reindex complete. Next run in %s.", interval)
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return err
	}
	defer pgClient.Close()

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		return err
	}

	catalogRepo := database.NewCatalogAdapter(pgClient)
	searchRepo := search.NewTypesenseAdapter(tsClient)

	if err := searchRepo.InitSchema(ctx); err != nil {
		return err
	}

	codes, err := catalogRepo.ListActive(ctx)
	if err != nil {
		return err
	}

	indexed := 0
	for _, code := range codes {
		if err := searchRepo.Index(ctx, code); err != nil {
			log.Printf("Failed to index %s: %v", code.Code, err)
			continue
		}
		indexed++
	}

	log.Printf("Indexed %d/%d catalog entries", indexed, len(codes))
	return nil
}
