package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/meditrace/ccam-assist/internal/adapters/database"
	"github.com/meditrace/ccam-assist/internal/adapters/events"
	"github.com/meditrace/ccam-assist/internal/application/services"
	"github.com/meditrace/ccam-assist/internal/domain/providers"
	"github.com/meditrace/ccam-assist/internal/infrastructure/clients/ledger"
	"github.com/meditrace/ccam-assist/internal/infrastructure/clients/postgres"
	"github.com/meditrace/ccam-assist/internal/infrastructure/clients/redis"
	"github.com/meditrace/ccam-assist/internal/infrastructure/observability"
	"github.com/meditrace/ccam-assist/pkg/config"
	"github.com/meditrace/ccam-assist/pkg/secrets"
)

// The anchorer daemon drains the anchor queue, sweeps pending audit
// entries and periodically reconciles recently finalized actes against
// the ledger.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if result, err := secrets.ApplyVaultSecrets(ctx, secrets.LoadVaultConfigFromEnv("")); err != nil {
		log.Fatalf("Failed to load secrets from Vault: %v", err)
	} else if result.Enabled {
		log.Printf("Loaded %d secrets from Vault path %s (%d skipped)", result.Loaded, result.Path, result.Skipped)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.InitLogger(cfg.OTEL.ServiceName+"-anchorer", cfg.Environment)

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName+"-anchorer", cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Printf("Warning: Failed to set up OpenTelemetry: %v", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					log.Printf("Error shutting down OpenTelemetry: %v", err)
				}
			}()
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize PostgreSQL client: %v", err)
	}
	defer pgClient.Close()

	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to initialize Redis client: %v", err)
	}
	defer redisClient.Close()

	ledgerClient, err := ledger.NewHTTPClient(&cfg.Ledger)
	if err != nil {
		log.Fatalf("Failed to initialize ledger client: %v", err)
	}

	acteRepo := database.NewActeAdapter(pgClient)
	auditRepo := database.NewAuditAdapter(pgClient)
	overrideRepo := database.NewOverrideAdapter(pgClient)
	eventBus := events.NewRedisEventBus(redisClient)
	defer eventBus.Close()

	auditService := services.NewAuditService(auditRepo, overrideRepo, ledgerClient, cfg.Anchor.QueueSize)
	worker := services.NewAnchorWorker(auditService, eventBus, cfg.Anchor, metrics)
	integrity := services.NewIntegrityService(acteRepo, auditRepo, ledgerClient, eventBus, metrics)

	go runIntegritySweep(ctx, integrity, time.Duration(cfg.Anchor.SweepIntervalSeconds)*time.Second)
	go logAlerts(ctx, eventBus)

	worker.Run(ctx)
}

// logAlerts surfaces operator alerts from every node in this daemon's
// log stream.
func logAlerts(ctx context.Context, eventBus providers.EventBus) {
	alerts, err := eventBus.Subscribe(ctx, providers.AlertsChannel)
	if err != nil {
		log.Printf("Failed to subscribe to alerts: %v", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-alerts:
			if !ok {
				return
			}
			log.Printf("Alert [%s] acte=%d entry=%d: %s", event.Type, event.ActeID, event.EntryID, event.Message)
		}
	}
}

// runIntegritySweep reconciles recently finalized actes on a fixed
// interval, carrying the cursor forward between runs.
func runIntegritySweep(ctx context.Context, integrity *services.IntegrityService, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var cursor int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			next, err := integrity.SweepFinalized(ctx, cursor, 50)
			if err != nil {
				log.Printf("Integrity sweep failed: %v", err)
				continue
			}
			cursor = next
		}
	}
}
