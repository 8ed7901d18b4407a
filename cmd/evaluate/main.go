package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/meditrace/ccam-assist/internal/adapters/cache"
	"github.com/meditrace/ccam-assist/internal/adapters/database"
	"github.com/meditrace/ccam-assist/internal/adapters/search"
	"github.com/meditrace/ccam-assist/internal/application/services"
	"github.com/meditrace/ccam-assist/internal/domain/repositories"
	"github.com/meditrace/ccam-assist/internal/evaluation"
	"github.com/meditrace/ccam-assist/internal/infrastructure/clients/openai"
	"github.com/meditrace/ccam-assist/internal/infrastructure/clients/postgres"
	"github.com/meditrace/ccam-assist/internal/infrastructure/clients/redis"
	"github.com/meditrace/ccam-assist/internal/infrastructure/clients/typesense"
	"github.com/meditrace/ccam-assist/pkg/config"
	"github.com/meditrace/ccam-assist/pkg/secrets"
)

// evaluate scores the live suggestion engine against a golden case set
// and prints the summary as JSON.
func main() {
	ctx := context.Background()

	if _, err := secrets.ApplyVaultSecrets(ctx, secrets.LoadVaultConfigFromEnv("")); err != nil {
		log.Fatalf("Failed to load secrets from Vault: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pgClient.Close()

	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	completionClient, err := openai.NewClient(&cfg.OpenAI)
	if err != nil {
		log.Fatalf("Failed to initialize completion client: %v", err)
	}

	var searchRepo repositories.CatalogSearchRepository
	if tsClient, err := typesense.NewClient(&cfg.Typesense); err != nil {
		log.Printf("Warning: Typesense unavailable, evaluating without candidate hints: %v", err)
	} else {
		searchRepo = search.NewTypesenseAdapter(tsClient)
	}

	catalogService := services.NewCatalogService(database.NewCatalogAdapter(pgClient))
	if err := catalogService.Refresh(ctx); err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}

	suggestionService := services.NewSuggestionService(
		completionClient,
		cache.NewRedisAdapter(redisClient),
		searchRepo,
		catalogService,
		cfg.Suggestion,
		nil,
	)

	goldenPath := "config/golden_cases.json"
	if len(os.Args) > 1 {
		goldenPath = os.Args[1]
	}

	cases, err := evaluation.LoadGoldenCases(goldenPath)
	if err != nil {
		log.Fatalf("Failed to load golden cases: %v", err)
	}
	if err := evaluation.ValidateGoldenCases(cases); err != nil {
		log.Fatalf("Invalid golden cases: %v", err)
	}

	summary, err := evaluation.NewRunner(suggestionService).Run(ctx, cases)
	if err != nil {
		log.Fatalf("Evaluation failed: %v", err)
	}

	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))
}
