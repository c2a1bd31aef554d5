// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package linkcheck validates URL-shaped values found in tool records:
// liveness, redirect behavior, and transport security.
package linkcheck

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/openlint/biolint/internal/cache"
	"github.com/openlint/biolint/internal/metric"
	"github.com/openlint/biolint/pkg/types"
)

// urlPattern matches http(s) URLs anchored at the start of the value.
var urlPattern = regexp.MustCompile(`^(http[s]?)://(?:[a-zA-Z]|[0-9]|[$-_@.&+]|[!*\(\),]|(?:%[0-9a-fA-F][0-9a-fA-F]))+`)

// errTooManyRedirects aborts a fetch once the redirect chain exceeds the
// configured bound.
var errTooManyRedirects = errors.New("too many redirects")

const (
	defaultTimeout      = 10 * time.Second
	defaultMaxRedirects = 10
	defaultCacheSize    = 1 << 16
)

// Checker validates a single (path, value) pair that looks like a URL.
// Results are cached by URL string so repeated identical URLs across
// records cost one network round trip per process lifetime.
type Checker struct {
	transport    http.RoundTripper
	timeout      time.Duration
	userAgent    string
	maxRedirects int
	cache        *cache.Cache[[]types.Diagnostic]
	metrics      *metric.Collector
	logger       *slog.Logger
}

// New builds a Checker. A nil transport uses http.DefaultTransport; a
// nil logger uses slog.Default(). The cache is owned by the checker and
// reset via ClearCache.
func New(cfg types.LinkConfig, metrics *metric.Collector, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxRedirects := cfg.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = defaultMaxRedirects
	}
	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	return &Checker{
		transport:    http.DefaultTransport,
		timeout:      timeout,
		userAgent:    cfg.UserAgent,
		maxRedirects: maxRedirects,
		cache:        cache.New[[]types.Diagnostic](cacheSize),
		metrics:      metrics,
		logger:       logger,
	}
}

// SetTransport overrides the HTTP transport. Tests use this to point the
// checker at httptest servers with self-signed certificates.
func (c *Checker) SetTransport(rt http.RoundTripper) { c.transport = rt }

// ClearCache drops all cached URL results. Intended to be called between
// large paginated batches to bound memory.
func (c *Checker) ClearCache() { c.cache.Clear() }

// Check validates value found at path. A nil return means the pair is
// not a link check candidate; an empty slice means the URL checked out
// clean. All fetch outcomes, clean included, are cached keyed by value.
func (c *Checker) Check(ctx context.Context, path, value string) []types.Diagnostic {
	if hit, ok := c.cache.Get(value); ok {
		c.metrics.CacheLookup("url", true)
		c.logger.Debug("url cache hit", "url", value, "findings", len(hit))
		return replay(hit, path)
	}
	c.metrics.CacheLookup("url", false)

	matchesURL := urlPattern.MatchString(value)
	linkKey := strings.HasSuffix(path, "url") || strings.HasSuffix(path, "uri")

	// Not URL-shaped and not in a link field: somebody else's problem.
	if !matchesURL && !linkKey {
		return nil
	}

	// FTP servers cannot be probed over HTTP; unverifiable, not a defect.
	if strings.HasPrefix(value, "ftp://") {
		c.logger.Debug("skipping ftp url", "url", value)
		return nil
	}

	// A link field holding something that does not parse as a URL, e.g.
	// when invisible Unicode characters crept in. No fetch is attempted.
	if !matchesURL {
		reports := []types.Diagnostic{{
			Code:     "URL_INVALID",
			Severity: types.SeverityHigh,
			Body:     fmt.Sprintf("The URL %s at %s could not be parsed, possibly due to invisible Unicode characters", value, path),
			Location: path,
		}}
		c.cache.Set(value, reports)
		return reports
	}

	c.logger.Debug("checking url", "url", value)
	reports := c.fetch(ctx, path, value)
	c.cache.Set(value, reports)
	return reports
}

// fetch performs the GET and classifies the outcome.
func (c *Checker) fetch(ctx context.Context, path, value string) []types.Diagnostic {
	reports := []types.Diagnostic{}

	var hops int
	client := &http.Client{
		Transport: c.transport,
		Timeout:   c.timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			hops = len(via)
			if len(via) >= c.maxRedirects {
				return errTooManyRedirects
			}
			return nil
		},
	}

	resp, err := c.get(ctx, client, value)
	if err != nil {
		return append(reports, classify(err, path, value))
	}
	drain(resp)

	if hops > 0 {
		reports = append(reports, types.Diagnostic{
			Code:     "URL_PERMANENT_REDIRECT",
			Severity: types.SeverityLow,
			Body:     fmt.Sprintf("URL %s at %s permanently redirected", value, path),
			Location: path,
		})
	}

	if resp.StatusCode >= 400 {
		reports = append(reports, types.Diagnostic{
			Code:     "URL_BAD_STATUS",
			Severity: types.SeverityMedium,
			Body:     fmt.Sprintf("URL %s at %s returned a non-2xx status code, indicating failure", value, path),
			Location: path,
		})
	}

	// For plain http, probe the https variant: its absence is worth a
	// note, its presence means the record should have used it.
	if strings.HasPrefix(value, "http://") {
		secure := "https://" + strings.TrimPrefix(value, "http://")
		resp2, err2 := c.get(ctx, client, secure)
		switch {
		case err2 == nil:
			drain(resp2)
			reports = append(reports, types.Diagnostic{
				Code:     "URL_UNUSED_SSL",
				Severity: types.SeverityMedium,
				Body:     fmt.Sprintf("Website %s at %s supports HTTPS but the provided URL uses HTTP", value, path),
				Location: path,
			})
		case isConnError(err2) || isTLSError(err2):
			// No listener or no usable TLS on the secure port: the
			// site does not serve HTTPS.
			reports = append(reports, types.Diagnostic{
				Code:     "URL_NO_SSL",
				Severity: types.SeverityLow,
				Body:     fmt.Sprintf("Website %s at %s lacks SSL encryption", value, path),
				Location: path,
			})
		default:
			reports = append(reports, classify(err2, path, value))
		}
	}

	return reports
}

func (c *Checker) get(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return client.Do(req)
}

// drain closes the body without downloading it; a small read lets the
// connection be reused.
func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}

// classify maps a fetch error onto the failure taxonomy. Anything not
// recognized becomes URL_LINTER_ERROR: check this manually, the checker
// itself may be at fault.
func classify(err error, path, value string) types.Diagnostic {
	switch {
	case errors.Is(err, errTooManyRedirects):
		return types.Diagnostic{
			Code:     "URL_TOO_MANY_REDIRECTS",
			Severity: types.SeverityHigh,
			Body:     fmt.Sprintf("Encountered excessive or infinite redirects while fetching URL %s at %s", value, path),
			Location: path,
		}
	case isTimeout(err):
		return types.Diagnostic{
			Code:     "URL_TIMEOUT",
			Severity: types.SeverityHigh,
			Body:     fmt.Sprintf("Website %s at %s took too long to respond", value, path),
			Location: path,
		}
	case isTLSError(err):
		return types.Diagnostic{
			Code:     "URL_SSL_ERROR",
			Severity: types.SeverityHigh,
			Body:     fmt.Sprintf("Detected an invalid or expired TLS certificate while fetching URL %s at %s", value, path),
			Location: path,
		}
	case isConnError(err):
		return types.Diagnostic{
			Code:     "URL_CONN_ERROR",
			Severity: types.SeverityHigh,
			Body:     fmt.Sprintf("Unable to establish a network connection to the URL %s at %s", value, path),
			Location: path,
		}
	default:
		return types.Diagnostic{
			Code:     "URL_LINTER_ERROR",
			Severity: types.SeverityLinterError,
			Body:     fmt.Sprintf("Encountered an unhandled error while validating URL %s at %s. Manual review required.", value, path),
			Location: path,
		}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isTLSError(err error) bool {
	var (
		certErr     *tls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		hostname    x509.HostnameError
		invalid     x509.CertificateInvalidError
		record      tls.RecordHeaderError
	)
	if errors.As(err, &certErr) ||
		errors.As(err, &unknownAuth) ||
		errors.As(err, &hostname) ||
		errors.As(err, &invalid) ||
		errors.As(err, &record) {
		return true
	}
	// net/http swallows the RecordHeaderError from a plain-HTTP server
	// answering on the https port and returns an untyped sentinel; the
	// string match is the only handle it exports.
	return err != nil && strings.Contains(err.Error(), "server gave HTTP response to HTTPS client")
}

func isConnError(err error) bool {
	var (
		opErr  *net.OpError
		dnsErr *net.DNSError
	)
	return errors.As(err, &opErr) || errors.As(err, &dnsErr)
}

// replay adapts cached diagnostics to the current path. The same URL can
// appear at many paths across many records; a hit must not leak the path
// of the first caller, so the stored location token is substituted in a
// copy of each message.
func replay(cached []types.Diagnostic, path string) []types.Diagnostic {
	out := make([]types.Diagnostic, len(cached))
	for i, d := range cached {
		d.Body = strings.Replace(d.Body, d.Location, path, 1)
		d.Location = path
		out[i] = d
	}
	return out
}
