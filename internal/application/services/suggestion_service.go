package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/meditrace/ccam-assist/internal/domain/entities"
	"github.com/meditrace/ccam-assist/internal/domain/providers"
	"github.com/meditrace/ccam-assist/internal/domain/repositories"
	"github.com/meditrace/ccam-assist/internal/domain/rules"
	"github.com/meditrace/ccam-assist/internal/infrastructure/observability"
	"github.com/meditrace/ccam-assist/pkg/config"
	apperrors "github.com/meditrace/ccam-assist/pkg/errors"
)

const (
	suggestionKeyPrefix = "ccam:suggestion:"
	inflightKeyPrefix   = "ccam:inflight:"
	inflightTTLSeconds  = 120
	candidateCodeLimit  = 8
)

// SuggestionService produces CCAM code suggestions for an acte. Results
// are cached by clinical fingerprint; concurrent requests for the same
// fingerprint share a single provider call.
type SuggestionService struct {
	completion providers.CompletionProvider
	cache      providers.CacheProvider
	searchRepo repositories.CatalogSearchRepository
	catalog    *CatalogService
	cfg        config.SuggestionConfig
	metrics    *observability.Metrics

	mu       sync.Mutex
	inflight map[string]chan struct{}
}

// NewSuggestionService creates a new suggestion service. searchRepo and
// metrics may be nil.
func NewSuggestionService(
	completion providers.CompletionProvider,
	cache providers.CacheProvider,
	searchRepo repositories.CatalogSearchRepository,
	catalog *CatalogService,
	cfg config.SuggestionConfig,
	metrics *observability.Metrics,
) *SuggestionService {
	return &SuggestionService{
		completion: completion,
		cache:      cache,
		searchRepo: searchRepo,
		catalog:    catalog,
		cfg:        cfg,
		metrics:    metrics,
		inflight:   make(map[string]chan struct{}),
	}
}

// Suggest returns the suggestion result for an acte, from cache when a
// fresh entry exists. forceRegenerate bypasses the cache read but still
// refreshes the cached entry.
func (s *SuggestionService) Suggest(ctx context.Context, acte *entities.Acte, forceRegenerate bool) (*entities.SuggestionResult, error) {
	ctx, span := observability.StartSpan(ctx, "suggestion.suggest")
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.String("acte.type", acte.TypeActe),
		attribute.Bool("suggestion.force", forceRegenerate),
	)

	start := time.Now()
	fingerprint := s.Fingerprint(acte)
	cacheKey := suggestionKeyPrefix + fingerprint

	if !forceRegenerate {
		if result, ok := s.readCache(ctx, cacheKey); ok {
			s.recordMetric(ctx, "cache", start)
			return result, nil
		}
	}

	for {
		leader, done := s.acquireFlight(fingerprint)
		if leader {
			result, err := s.computeAndStore(ctx, acte, cacheKey, fingerprint, done)
			if err != nil {
				observability.RecordError(span, err)
				return nil, err
			}
			s.recordMetric(ctx, "provider", start)
			return result, nil
		}

		// Another caller is computing this fingerprint. Wait for it,
		// then read the cache it populated.
		select {
		case <-ctx.Done():
			err := apperrors.NewInternalError("interrupted while waiting for in-flight suggestion", ctx.Err())
			observability.RecordError(span, err)
			return nil, err
		case <-done:
		}

		if result, ok := s.readCache(ctx, cacheKey); ok {
			s.recordMetric(ctx, "cache", start)
			return result, nil
		}
		// Leader failed; contend for leadership ourselves.
	}
}

// DetectAnomalies runs the provider-backed anomaly screen over an acte
// and returns the raised alerts.
func (s *SuggestionService) DetectAnomalies(ctx context.Context, acte *entities.Acte) ([]string, error) {
	raw, err := s.completion.Complete(ctx, s.buildRequest(ctx, acte, providers.TaskAnomalyDetection))
	if err != nil {
		return nil, err
	}

	obj, err := extractJSONObject(raw)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Alertes     []string `json:"alertes"`
		ScoreRisque float64  `json:"score_risque"`
		Explication string   `json:"explication"`
	}
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return nil, apperrors.NewParseError("malformed anomaly response", err)
	}

	return parsed.Alertes, nil
}

// Fingerprint derives the deterministic cache fingerprint of an acte's
// clinical fields. The description contributes only its prefix so minor
// trailing edits do not bust the cache.
func (s *SuggestionService) Fingerprint(acte *entities.Acte) string {
	prefixLen := s.cfg.DescriptionPrefixLen
	if prefixLen <= 0 {
		prefixLen = 100
	}

	description := acte.DescriptionClinique
	if runes := []rune(description); len(runes) > prefixLen {
		description = string(runes[:prefixLen])
	}

	modificateurs := append([]string(nil), acte.Modificateurs...)
	sort.Strings(modificateurs)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%s", acte.TypeActe, description, acte.DureeActe, strings.Join(modificateurs, ","))
	return hex.EncodeToString(h.Sum(nil))
}

// acquireFlight reports whether the caller is the leader for the
// fingerprint. Non-leaders receive the channel the leader closes when
// its computation settles.
func (s *SuggestionService) acquireFlight(fingerprint string) (bool, chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if done, exists := s.inflight[fingerprint]; exists {
		return false, done
	}

	done := make(chan struct{})
	s.inflight[fingerprint] = done
	return true, done
}

func (s *SuggestionService) releaseFlight(fingerprint string, done chan struct{}) {
	s.mu.Lock()
	delete(s.inflight, fingerprint)
	s.mu.Unlock()
	close(done)
}

// computeAndStore runs the provider call on a context detached from the
// caller so cancellation of one waiter cannot abandon work other waiters
// depend on. The detached context keeps a bounded deadline of its own.
func (s *SuggestionService) computeAndStore(ctx context.Context, acte *entities.Acte, cacheKey, fingerprint string, done chan struct{}) (*entities.SuggestionResult, error) {
	defer s.releaseFlight(fingerprint, done)

	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), 60*time.Second)
	defer cancel()

	// Cross-process guard: first node in wins, others fall through and
	// compute anyway rather than block on a remote peer.
	if acquired, err := s.cache.SetNX(detached, inflightKeyPrefix+fingerprint, []byte("1"), inflightTTLSeconds); err == nil && acquired {
		defer s.cache.Delete(detached, inflightKeyPrefix+fingerprint)
	}

	raw, err := s.completion.Complete(detached, s.buildRequest(detached, acte, providers.TaskSuggestion))
	if err != nil {
		return nil, err
	}

	result, err := s.parseResult(raw)
	if err != nil {
		return nil, err
	}

	s.enrich(result, acte)
	result.GeneratedAt = time.Now().UTC()
	result.FromCache = false

	ttl := s.cfg.CacheTTLSeconds
	if ttl <= 0 {
		ttl = 3600
	}
	if data, err := json.Marshal(result); err == nil {
		if err := s.cache.Set(detached, cacheKey, data, ttl); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Msg("failed to cache suggestion result")
		}
	}

	return result, nil
}

func (s *SuggestionService) readCache(ctx context.Context, cacheKey string) (*entities.SuggestionResult, bool) {
	data, err := s.cache.Get(ctx, cacheKey)
	if err != nil {
		if s.metrics != nil {
			observability.RecordCacheMiss(ctx, s.metrics, suggestionKeyPrefix)
		}
		return nil, false
	}

	var result entities.SuggestionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false
	}

	if s.metrics != nil {
		observability.RecordCacheHit(ctx, s.metrics, suggestionKeyPrefix)
	}
	result.FromCache = true
	return &result, true
}

func (s *SuggestionService) buildRequest(ctx context.Context, acte *entities.Acte, task providers.CompletionTask) providers.CompletionRequest {
	req := providers.CompletionRequest{
		TypeActe:            acte.TypeActe,
		DescriptionClinique: acte.DescriptionClinique,
		MaterielUtilise:     acte.MaterielUtilise,
		DureeActe:           acte.DureeActe,
		Modificateurs:       acte.Modificateurs,
		Etablissement:       acte.Etablissement,
		Service:             acte.Service,
		Task:                task,
	}

	if s.searchRepo != nil {
		hits, err := s.searchRepo.SearchByLibelle(ctx, acte.DescriptionClinique, candidateCodeLimit)
		if err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Msg("catalog search unavailable, continuing without hints")
		}
		for _, hit := range hits {
			req.CandidateCodes = append(req.CandidateCodes, providers.CandidateCode{
				Code:    hit.Code,
				Libelle: hit.Libelle,
			})
		}
	}

	return req
}

// parseResult extracts and validates the single JSON object embedded in
// the raw completion text.
func (s *SuggestionService) parseResult(raw string) (*entities.SuggestionResult, error) {
	obj, err := extractJSONObject(raw)
	if err != nil {
		return nil, err
	}

	var result entities.SuggestionResult
	if err := json.Unmarshal([]byte(obj), &result); err != nil {
		return nil, apperrors.NewParseError("malformed suggestion response", err)
	}

	if len(result.Suggestions) == 0 {
		return nil, apperrors.NewParseError("suggestion response contains no suggestions", nil)
	}
	for i, suggestion := range result.Suggestions {
		if suggestion.Code == "" {
			return nil, apperrors.NewParseError(fmt.Sprintf("suggestion %d has no code", i), nil)
		}
	}

	return &result, nil
}

// enrich applies the compatibility rule verdict to every candidate:
// valid codes gain 5 points (capped at 100), invalid codes lose 10
// (floored at 0). Candidate order does not affect the outcome.
func (s *SuggestionService) enrich(result *entities.SuggestionResult, acte *entities.Acte) {
	if s.catalog == nil {
		return
	}
	engine := s.catalog.Engine()

	for i := range result.Suggestions {
		suggestion := &result.Suggestions[i]

		verdict := engine.Validate(suggestion.Code, rulesContext(acte, suggestion.Modificateurs))
		suggestion.RuleValid = verdict.IsValid
		suggestion.RuleReasons = verdict.Reasons

		if verdict.IsValid {
			suggestion.ScoreConfiance = min(suggestion.ScoreConfiance+5, 100)
		} else {
			suggestion.ScoreConfiance = max(suggestion.ScoreConfiance-10, 0)
			result.Alertes = append(result.Alertes,
				fmt.Sprintf("code %s incompatible: %s", suggestion.Code, strings.Join(verdict.Reasons, "; ")))
		}
	}
}

func (s *SuggestionService) recordMetric(ctx context.Context, source string, start time.Time) {
	if s.metrics == nil {
		return
	}
	observability.RecordSuggestionMetric(ctx, s.metrics, source, time.Since(start))
}

// extractJSONObject returns the substring between the first '{' and the
// last '}' of the raw text, the only place providers are trusted to put
// their JSON object.
func extractJSONObject(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return "", apperrors.NewParseError("no JSON object in completion response", nil)
	}
	return raw[start : end+1], nil
}

func rulesContext(acte *entities.Acte, modificateurs []string) rules.Context {
	ctx := rules.Context{
		Modificateurs: acte.Modificateurs,
		DureeActe:     acte.DureeActe,
		DateActe:      acte.DateActe,
	}
	if len(modificateurs) > 0 {
		ctx.Modificateurs = modificateurs
	}
	return ctx
}
