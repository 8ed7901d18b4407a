package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_LedgerConfig(t *testing.T) {
	os.Setenv("LEDGER_BASE_URL", "http://ledger-node:9090")
	os.Setenv("LEDGER_TIMEOUT_SECONDS", "3")
	defer func() {
		os.Unsetenv("LEDGER_BASE_URL")
		os.Unsetenv("LEDGER_TIMEOUT_SECONDS")
	}()

	cfg, err := Load()
	assert.NoError(t, err)

	assert.Equal(t, "http://ledger-node:9090", cfg.Ledger.BaseURL)
	assert.Equal(t, 3, cfg.Ledger.TimeoutSeconds)
}

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("SUGGESTION_CACHE_TTL_SECONDS")
	os.Unsetenv("SUGGESTION_CONFIDENCE_THRESHOLD")
	os.Unsetenv("ANCHOR_MAX_ATTEMPTS")

	cfg, err := Load()
	assert.NoError(t, err)

	assert.Equal(t, 3600, cfg.Suggestion.CacheTTLSeconds)
	assert.Equal(t, float64(50), cfg.Suggestion.ConfidenceThreshold)
	assert.Equal(t, 5, cfg.Anchor.MaxAttempts)
	assert.Equal(t, "ccam-assist", cfg.OTEL.ServiceName)
}

func TestLoad_SuggestionOverrides(t *testing.T) {
	os.Setenv("SUGGESTION_CONFIDENCE_THRESHOLD", "65.5")
	defer os.Unsetenv("SUGGESTION_CONFIDENCE_THRESHOLD")

	cfg, err := Load()
	assert.NoError(t, err)

	assert.Equal(t, 65.5, cfg.Suggestion.ConfidenceThreshold)
}
