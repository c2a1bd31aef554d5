// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pubcheck cross-checks the DOI/PMID/PMCID identifiers declared
// on a record's publications against the NCBI identifier conversion
// service.
package pubcheck

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/openlint/biolint/internal/cache"
	"github.com/openlint/biolint/internal/httputil"
	"github.com/openlint/biolint/internal/metric"
	"github.com/openlint/biolint/pkg/types"
)

// idconvBase is the NCBI ID converter endpoint. Declared as a var so
// tests can substitute an httptest server.
var idconvBase = "https://www.ncbi.nlm.nih.gov/pmc/utils/idconv/v1.0/"

const (
	defaultRate      = 3 // NCBI quota without an API key
	defaultBurst     = 3
	defaultCacheSize = 1 << 14
)

// IDSet holds every identifier the converter knows for one input
// identifier. The converter may return several records per query, so
// each kind is a set; any member counts as a match.
type IDSet struct {
	DOI   []string
	PMID  []string
	PMCID []string
}

func (s *IDSet) of(kind string) []string {
	switch kind {
	case "DOI":
		return s.DOI
	case "PMID":
		return s.PMID
	default:
		return s.PMCID
	}
}

// Converter resolves publication identifiers through the NCBI idconv
// service, rate-limited to the service quota and cached by identifier
// string. A nil cached entry records a failed resolution so dead
// identifiers are not re-queried.
type Converter struct {
	client  *http.Client
	limiter *rate.Limiter
	cache   *cache.Cache[*IDSet]
	tool    string
	email   string
	apiKey  string
	metrics *metric.Collector
	logger  *slog.Logger
}

// NewConverter builds a Converter from cfg. The tool name identifies the
// caller to NCBI alongside the configured contact email.
func NewConverter(cfg types.ConverterConfig, metrics *metric.Collector, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRate
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	return &Converter{
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		cache:   cache.New[*IDSet](cacheSize),
		tool:    "biolint",
		email:   cfg.Email,
		apiKey:  cfg.APIKey,
		metrics: metrics,
		logger:  logger,
	}
}

// SetClient overrides the HTTP client, for tests.
func (c *Converter) SetClient(client *http.Client) { c.client = client }

// ClearCache drops all cached resolutions.
func (c *Converter) ClearCache() { c.cache.Clear() }

// idconv JSON structures.
type idconvResponse struct {
	Status  string         `json:"status"`
	Records []idconvRecord `json:"records"`
}

type idconvRecord struct {
	DOI    string `json:"doi"`
	PMID   string `json:"pmid"`
	PMCID  string `json:"pmcid"`
	Live   string `json:"live"`
	Status string `json:"status"`
}

// Resolve converts one identifier. ok is false when the service could
// not resolve it; absence of verification is not a finding, so callers
// simply skip further checks for that identifier.
func (c *Converter) Resolve(ctx context.Context, id string) (*IDSet, bool) {
	if hit, found := c.cache.Get(id); found {
		c.metrics.CacheLookup("idconv", true)
		return hit, hit != nil
	}
	c.metrics.CacheLookup("idconv", false)

	set := c.fetch(ctx, id)
	c.cache.Set(id, set)
	return set, set != nil
}

// fetch queries the service once. A nil return means resolution failed.
func (c *Converter) fetch(ctx context.Context, id string) *IDSet {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil
	}

	params := url.Values{
		"tool":   {c.tool},
		"email":  {c.email},
		"ids":    {id},
		"format": {"json"},
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, idconvBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil
	}

	c.metrics.ConverterCall()
	resp, err := httputil.DoWithRetry(ctx, c.client, req, 0)
	if err != nil {
		c.logger.Debug("idconv request failed", "id", id, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("idconv returned non-OK status", "id", id, "status", resp.StatusCode)
		return nil
	}

	var parsed idconvResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.logger.Debug("idconv response malformed", "id", id, "error", err)
		return nil
	}
	if parsed.Status != "ok" || len(parsed.Records) == 0 {
		return nil
	}

	set := &IDSet{}
	for _, rec := range parsed.Records {
		// Records the service marks dead carry stale identifiers.
		if rec.Live == "false" || rec.Status == "error" {
			continue
		}
		if rec.DOI != "" {
			set.DOI = append(set.DOI, rec.DOI)
		}
		if rec.PMID != "" {
			set.PMID = append(set.PMID, rec.PMID)
		}
		if rec.PMCID != "" {
			set.PMCID = append(set.PMCID, rec.PMCID)
		}
	}
	return set
}

// matches reports whether declared equals any member of resolved under a
// case-insensitive, trimmed comparison.
func matches(declared string, resolved []string) bool {
	declared = strings.TrimSpace(declared)
	for _, r := range resolved {
		if strings.EqualFold(declared, strings.TrimSpace(r)) {
			return true
		}
	}
	return false
}
