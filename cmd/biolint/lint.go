// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/openlint/biolint/internal/engine"
	"github.com/openlint/biolint/internal/linkcheck"
	"github.com/openlint/biolint/internal/metric"
	"github.com/openlint/biolint/internal/ontology"
	"github.com/openlint/biolint/internal/pubcheck"
	"github.com/openlint/biolint/internal/registry"
	"github.com/openlint/biolint/internal/rules"
	"github.com/openlint/biolint/internal/secrets"
	"github.com/openlint/biolint/internal/store"
	"github.com/openlint/biolint/pkg/types"
)

const (
	defaultUserAgent        = "biolint/0.1"
	defaultTermTableURL     = "https://edamontology.org/EDAM.csv"
	defaultRelationTableURL = "https://edamontology.org/EDAM_relations.csv"
)

var lintCmd = &cobra.Command{
	Use:   "lint [query]",
	Short: "Lint bio.tools entries and report findings",
	Long: `Lint fetches tool records from the bio.tools registry and checks them
for broken links, invalid EDAM annotations, and publication identifiers
that fail to cross-reference.

Use --exact to lint a single tool by its biotoolsID, or a free-text
query with --page to lint search results. With --db the findings are
also persisted to a SQLite database, replacing earlier findings for
each linted tool.`,
	RunE: runLint,
}

func init() {
	lintCmd.Flags().String("exact", "", "lint a single tool by biotoolsID")
	lintCmd.Flags().String("page", "1", "result page or range: N, N-M, or all")
	lintCmd.Flags().Int("threads", 0, "records linted in parallel (0 = config default)")
	lintCmd.Flags().String("format", "text", "output format: text, json, or yaml")
	lintCmd.Flags().String("db", "", "SQLite database to persist findings to")
	lintCmd.Flags().String("edam-dir", "", "directory holding EDAM data files (downloaded if absent)")
	lintCmd.Flags().String("email", "", "contact email sent to NCBI (overrides secrets)")
	lintCmd.Flags().String("api-key", "", "NCBI API key (overrides secrets)")
	lintCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")

	rootCmd.AddCommand(lintCmd)
}

func runLint(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)
	ctx := cmd.Context()
	cfg := lintConfigFromFlags(cmd)

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unsupported format %q: use text, json, or yaml", format)
	}

	var collector *metric.Collector
	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		promReg := prometheus.NewRegistry()
		c, err := metric.New(promReg)
		if err != nil {
			return fmt.Errorf("registering metrics: %w", err)
		}
		collector = c
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	onto, err := ontology.Load(cfg.Ontology, &http.Client{Timeout: 60 * time.Second})
	if err != nil {
		return fmt.Errorf("loading EDAM data: %w", err)
	}
	logger.Info("loaded ontology", "terms", onto.Len())

	links := linkcheck.New(cfg.Link, collector, logger)
	conv := pubcheck.NewConverter(cfg.Converter, collector, logger)
	pubs := pubcheck.NewChecker(conv, logger)
	dispatcher := rules.NewDispatcher(links, onto, pubs, logger)
	eng := engine.New(dispatcher, cfg.Engine.Workers, collector, logger)

	tools, err := fetchTools(ctx, cmd, cfg, args)
	if err != nil {
		return err
	}
	if len(tools) == 0 {
		fmt.Println("No tools matched.")
		return nil
	}

	var db *store.Store
	if cfg.Store.Path != "" {
		db, err = store.Open(cfg.Store)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	out := make(chan types.Diagnostic, 256)
	done := make(chan reportSummary)
	go func() {
		done <- consume(ctx, out, format, db, logger)
	}()

	lintErr := eng.LintAll(ctx, tools, out)
	close(out)
	summary := <-done

	if format == "text" {
		fmt.Printf("\n%d findings across %d tools\n", summary.findings, len(tools))
	}
	if lintErr != nil {
		return lintErr
	}
	return summary.err
}

type reportSummary struct {
	findings int
	err      error
}

// consume drains the diagnostic channel, grouping per tool on the
// completion marker: text output streams as findings arrive, while json
// and yaml are encoded once at the end. Finished tools are persisted
// immediately so an interrupted run keeps its completed work.
func consume(ctx context.Context, out <-chan types.Diagnostic, format string, db *store.Store, logger *slog.Logger) reportSummary {
	byTool := map[string][]types.Diagnostic{}
	var all []types.Diagnostic
	var summary reportSummary

	run := store.NewRunID()
	for d := range out {
		if d.Code == engine.CompletionCode {
			if db != nil {
				if err := db.ReplaceTool(ctx, run, d.Tool, byTool[d.Tool]); err != nil {
					logger.Error("persisting findings", "tool", d.Tool, "error", err)
					summary.err = err
				}
			}
			delete(byTool, d.Tool)
			continue
		}

		summary.findings++
		byTool[d.Tool] = append(byTool[d.Tool], d)
		switch format {
		case "text":
			fmt.Printf("%s: [%s] %s\n", d.Tool, d.Code, d.Body)
		default:
			all = append(all, d)
		}
	}

	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(all); err != nil {
			summary.err = err
		}
	case "yaml":
		data, err := yaml.Marshal(all)
		if err != nil {
			summary.err = err
		} else {
			os.Stdout.Write(data)
		}
	}
	return summary
}

// fetchTools resolves the lint target: one exact tool or a page range of
// search results.
func fetchTools(ctx context.Context, cmd *cobra.Command, cfg types.LintConfig, args []string) ([]types.Tool, error) {
	client := registry.New(cfg.Registry, nil)

	if exact, _ := cmd.Flags().GetString("exact"); exact != "" {
		page, err := client.Exact(ctx, exact)
		if err != nil {
			return nil, fmt.Errorf("fetching tool %s: %w", exact, err)
		}
		return page.Tools(), nil
	}

	pageSpec, _ := cmd.Flags().GetString("page")
	first, last, err := parsePageRange(pageSpec)
	if err != nil {
		return nil, err
	}

	query := strings.Join(args, " ")
	var tools []types.Tool
	err = client.SearchPages(ctx, query, first, last, func(tool types.Tool) error {
		tools = append(tools, tool)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tools, nil
}

// parsePageRange accepts "N", "N-M", or "all" (every page).
func parsePageRange(spec string) (first, last int, err error) {
	if spec == "" || spec == "all" {
		return 1, 0, nil
	}
	if lo, hi, ok := strings.Cut(spec, "-"); ok {
		first, err = strconv.Atoi(lo)
		if err == nil {
			last, err = strconv.Atoi(hi)
		}
		if err != nil || first < 1 || last < first {
			return 0, 0, fmt.Errorf("invalid page range %q", spec)
		}
		return first, last, nil
	}
	first, err = strconv.Atoi(spec)
	if err != nil || first < 1 {
		return 0, 0, fmt.Errorf("invalid page %q", spec)
	}
	return first, first, nil
}

// lintConfigFromFlags merges config file values with command-line
// overrides into one LintConfig.
func lintConfigFromFlags(cmd *cobra.Command) types.LintConfig {
	viper.SetDefault("http.user_agent", defaultUserAgent)
	viper.SetDefault("ontology.term_table_url", defaultTermTableURL)
	viper.SetDefault("ontology.relation_table_url", defaultRelationTableURL)

	userAgent := viper.GetString("http.user_agent")
	httpCfg := types.HTTPConfig{
		Timeout:   viper.GetDuration("http.timeout"),
		UserAgent: userAgent,
	}

	cfg := types.LintConfig{
		Registry: types.RegistryConfig{HTTPConfig: httpCfg},
		Link: types.LinkConfig{
			HTTPConfig:   httpCfg,
			MaxRedirects: viper.GetInt("link.max_redirects"),
			CacheSize:    viper.GetInt("link.cache_size"),
		},
		Ontology: types.OntologyConfig{
			HTTPConfig:       httpCfg,
			DataDir:          viper.GetString("ontology.data_dir"),
			TermTableURL:     viper.GetString("ontology.term_table_url"),
			RelationTableURL: viper.GetString("ontology.relation_table_url"),
		},
		Converter: types.ConverterConfig{
			HTTPConfig:        httpCfg,
			RequestsPerSecond: viper.GetFloat64("converter.requests_per_second"),
			Burst:             viper.GetInt("converter.burst"),
			CacheSize:         viper.GetInt("converter.cache_size"),
		},
		Engine: types.EngineConfig{Workers: viper.GetInt("engine.workers")},
		Store:  types.StoreConfig{Path: viper.GetString("store.path")},
	}

	email, _ := cmd.Flags().GetString("email")
	apiKey, _ := cmd.Flags().GetString("api-key")
	cfg.Converter.Email = secrets.Get(loadedSecrets, "ncbi-email", email)
	cfg.Converter.APIKey = secrets.Get(loadedSecrets, "ncbi-api-key", apiKey)

	if dir, _ := cmd.Flags().GetString("edam-dir"); dir != "" {
		cfg.Ontology.DataDir = dir
	}
	if threads, _ := cmd.Flags().GetInt("threads"); threads > 0 {
		cfg.Engine.Workers = threads
	}
	if dbPath, _ := cmd.Flags().GetString("db"); dbPath != "" {
		cfg.Store.Path = dbPath
	}
	return cfg
}
