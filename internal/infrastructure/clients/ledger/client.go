// Package ledger implements the HTTP client for the external immutable
// ledger node. The node is consumed through a submit/query interface;
// its consensus mechanics are opaque here.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/meditrace/ccam-assist/internal/domain/entities"
	"github.com/meditrace/ccam-assist/internal/domain/providers"
	"github.com/meditrace/ccam-assist/pkg/config"
	apperrors "github.com/meditrace/ccam-assist/pkg/errors"
)

// HTTPClient talks to a ledger node over HTTP.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ providers.LedgerProvider = (*HTTPClient)(nil)

// NewHTTPClient creates a ledger client with a bounded request timeout.
func NewHTTPClient(cfg *config.LedgerConfig) (*HTTPClient, error) {
	if cfg == nil || cfg.BaseURL == "" {
		return nil, fmt.Errorf("ledger base URL is required")
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTTPClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type submitResponse struct {
	TransactionRef string `json:"transaction_ref"`
}

type listResponse struct {
	TransactionRefs []string `json:"transaction_refs"`
}

// Submit records a payload on the ledger and returns the transaction
// reference. The node deduplicates on the payload entry id, so retrying
// a submission is safe.
func (c *HTTPClient) Submit(ctx context.Context, payload *entities.AnchorPayload) (string, error) {
	if payload == nil {
		return "", apperrors.NewValidationError("anchor payload is required")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", apperrors.NewInternalError("failed to marshal anchor payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/transactions", bytes.NewReader(body))
	if err != nil {
		return "", apperrors.NewInternalError("failed to build ledger request", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperrors.NewAnchorError("ledger submit failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperrors.NewAnchorError(fmt.Sprintf("ledger submit failed with status %d", resp.StatusCode), nil)
	}

	var parsed submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", apperrors.NewAnchorError("failed to decode ledger submit response", err)
	}
	if parsed.TransactionRef == "" {
		return "", apperrors.NewAnchorError("ledger submit response missing transaction ref", nil)
	}

	return parsed.TransactionRef, nil
}

// Query returns the payload recorded under a transaction reference.
func (c *HTTPClient) Query(ctx context.Context, transactionRef string) (*entities.AnchorPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/transactions/"+transactionRef, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build ledger request", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalError("ledger query failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("ledger transaction %s not found", transactionRef))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperrors.NewExternalError(fmt.Sprintf("ledger query failed with status %d: %s", resp.StatusCode, string(body)), nil)
	}

	var payload entities.AnchorPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperrors.NewExternalError("failed to decode ledger transaction", err)
	}

	return &payload, nil
}

// ListForEntity returns the transaction references recorded for an acte,
// oldest first.
func (c *HTTPClient) ListForEntity(ctx context.Context, entityID int64) ([]string, error) {
	url := fmt.Sprintf("%s/api/v1/entities/%d/transactions", c.baseURL, entityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build ledger request", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalError("ledger list failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewExternalError(fmt.Sprintf("ledger list failed with status %d", resp.StatusCode), nil)
	}

	var parsed listResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewExternalError("failed to decode ledger transaction list", err)
	}

	return parsed.TransactionRefs, nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
}
