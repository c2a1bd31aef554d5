// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package registry fetches tool records from the bio.tools API.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/openlint/biolint/internal/httputil"
	"github.com/openlint/biolint/pkg/types"
)

// searchBase is the bio.tools tool endpoint. Declared as a var so tests
// can substitute an httptest server.
var searchBase = "https://bio.tools/api/tool"

const defaultTimeout = 30 * time.Second

// Client queries the bio.tools registry.
type Client struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// New builds a registry client from configuration.
func New(cfg types.RegistryConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		client:    &http.Client{Timeout: timeout},
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
}

// Page is one page of search results as returned by the registry.
type Page struct {
	Count    int            `json:"count"`
	Next     string         `json:"next"`
	Previous string         `json:"previous"`
	List     []types.Record `json:"list"`
	Detail   string         `json:"detail"`
}

// Tools converts the page's raw records into identified tools. Records
// without a biotoolsID are skipped.
func (p *Page) Tools() []types.Tool {
	var tools []types.Tool
	for _, rec := range p.List {
		id, _ := rec["biotoolsID"].(string)
		if id == "" {
			continue
		}
		tools = append(tools, types.Tool{ID: id, Record: rec})
	}
	return tools
}

// Search runs one page of a free-text query. Past the last page the
// registry answers HTTP 404 with a detail message; that is reported as
// ErrPastLastPage so pagination loops can stop cleanly.
func (c *Client) Search(ctx context.Context, query string, page int) (*Page, error) {
	params := url.Values{"format": {"json"}, "page": {fmt.Sprintf("%d", page)}}
	if query != "" {
		params.Set("q", query)
	}
	return c.get(ctx, searchBase+"/?"+params.Encode())
}

// Exact fetches a single tool by its biotoolsID and wraps it in a
// one-element page.
func (c *Client) Exact(ctx context.Context, id string) (*Page, error) {
	reqURL := searchBase + "/" + url.PathEscape(id) + "/?format=json"

	rec, err := c.fetch(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	return &Page{Count: 1, List: []types.Record{rec}}, nil
}

// ErrPastLastPage reports a page number beyond the final result page.
var ErrPastLastPage = fmt.Errorf("past last result page")

// SearchPages streams tools for query from firstPage through lastPage
// inclusive, stopping early when the registry runs out of pages. A
// lastPage of 0 means all pages.
func (c *Client) SearchPages(ctx context.Context, query string, firstPage, lastPage int, fn func(types.Tool) error) error {
	if firstPage <= 0 {
		firstPage = 1
	}
	for page := firstPage; lastPage == 0 || page <= lastPage; page++ {
		p, err := c.Search(ctx, query, page)
		if err == ErrPastLastPage {
			return nil
		}
		if err != nil {
			return fmt.Errorf("fetching page %d: %w", page, err)
		}
		for _, tool := range p.Tools() {
			if err := fn(tool); err != nil {
				return err
			}
		}
		if p.Next == "" {
			return nil
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, reqURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := httputil.DoWithRetry(ctx, c.client, req, 3)
	if err != nil {
		return nil, fmt.Errorf("registry request: %w", err)
	}
	defer resp.Body.Close()

	var p Page
	if resp.StatusCode == http.StatusNotFound {
		// Past-the-end pages carry a JSON detail body rather than an
		// empty result list.
		if decodeErr := json.NewDecoder(resp.Body).Decode(&p); decodeErr == nil && p.Detail != "" {
			return nil, ErrPastLastPage
		}
		return nil, fmt.Errorf("registry returned HTTP %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry returned HTTP %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("parsing registry response: %w", err)
	}
	return &p, nil
}

func (c *Client) fetch(ctx context.Context, reqURL string) (types.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := httputil.DoWithRetry(ctx, c.client, req, 3)
	if err != nil {
		return nil, fmt.Errorf("registry request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("tool not found")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry returned HTTP %d", resp.StatusCode)
	}

	var rec types.Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("parsing registry response: %w", err)
	}
	return rec, nil
}
