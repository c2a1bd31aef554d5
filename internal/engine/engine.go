// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine orchestrates concurrent rule evaluation: per-field
// fan-out within a record, bounded fan-out across records, and a single
// ordered output channel of diagnostics.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/openlint/biolint/internal/flatten"
	"github.com/openlint/biolint/internal/metric"
	"github.com/openlint/biolint/internal/rules"
	"github.com/openlint/biolint/pkg/types"
)

// CompletionCode marks the Internal-severity diagnostic appended after
// every diagnostic of a record has been emitted. Consumers key on it to
// know a record is done; it is never persisted.
const CompletionCode = "LINT-F"

// PathSeparator joins record identifiers and keys into flat paths.
const PathSeparator = "/"

const defaultWorkers = 4

// pairWorkers bounds the per-pair tasks inside one record.
const pairWorkers = 16

// Engine evaluates records against the rule set. All shared mutable
// state (caches, rate limiter) lives inside the injected checkers, so
// independent engine instances never interfere.
type Engine struct {
	rules   *rules.Dispatcher
	workers int
	metrics *metric.Collector
	logger  *slog.Logger
}

// New builds an engine around a dispatcher. workers bounds how many
// records are evaluated simultaneously; zero or less selects the
// default (4).
func New(dispatcher *rules.Dispatcher, workers int, metrics *metric.Collector, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Engine{
		rules:   dispatcher,
		workers: workers,
		metrics: metrics,
		logger:  logger,
	}
}

// Lint evaluates one record. Every flattened pair plus the whole-record
// rules run as independent goroutines; their diagnostics are delivered
// to out tagged with id, in no particular order. After all tasks finish
// the completion marker for id is emitted, so the marker is always the
// last diagnostic observed for the record.
//
// A panic inside a rule task is converted into a LinterError diagnostic
// and never cancels sibling tasks.
func (e *Engine) Lint(ctx context.Context, rec types.Record, id string, out chan<- types.Diagnostic) {
	e.logger.Info("linting", "tool", id)

	entries := flatten.Flatten(rec, id, PathSeparator)

	// Gate the per-pair fan-out too: a record with hundreds of URL
	// fields must not hold hundreds of connections at once.
	var g errgroup.Group
	g.SetLimit(pairWorkers)
	for _, entry := range entries {
		entry := entry
		g.Go(func() error {
			defer e.recoverTask(id, entry.Path, out)
			e.emit(out, id, e.rules.DispatchPair(ctx, entry))
			return nil
		})
	}
	g.Go(func() error {
		defer e.recoverTask(id, id, out)
		e.emit(out, id, e.rules.DispatchRecord(ctx, rec))
		return nil
	})
	g.Wait()

	e.metrics.RecordLinted()
	out <- types.Diagnostic{
		Code:     CompletionCode,
		Severity: types.SeverityInternal,
		Body:     "Finished linting",
		Location: id,
		Tool:     id,
	}
}

// LintAll evaluates many records with bounded parallelism. A new record
// is not started until a worker slot frees; tasks of different records
// interleave freely on out. Cancelling ctx stops new work while records
// already in flight drain their diagnostics. The caller owns out and
// closes it after LintAll returns.
func (e *Engine) LintAll(ctx context.Context, tools []types.Tool, out chan<- types.Diagnostic) error {
	var g errgroup.Group
	g.SetLimit(e.workers)

	for _, tool := range tools {
		if err := ctx.Err(); err != nil {
			break
		}
		tool := tool
		g.Go(func() error {
			e.Lint(ctx, tool.Record, tool.ID, out)
			return nil
		})
	}
	g.Wait()
	return ctx.Err()
}

// ClearCaches drops cached link and publication lookups. Useful between
// batches when upstream state may have changed.
func (e *Engine) ClearCaches() {
	if e.rules.Links != nil {
		e.rules.Links.ClearCache()
	}
	if e.rules.Pubs != nil {
		e.rules.Pubs.ClearCache()
	}
}

// emit stamps the record id onto each diagnostic and delivers it. Sends
// are unconditional: the caller owns out and consumes until close, and a
// cancelled context must still drain results rule tasks already paid for.
func (e *Engine) emit(out chan<- types.Diagnostic, id string, diags []types.Diagnostic) {
	for _, d := range diags {
		d.Tool = id
		e.metrics.Diagnostic(d.Severity)
		out <- d
	}
}

// recoverTask converts a panicking rule task into a diagnostic so one
// broken rule never takes down its siblings or loses the record.
func (e *Engine) recoverTask(id, path string, out chan<- types.Diagnostic) {
	r := recover()
	if r == nil {
		return
	}
	e.logger.Error("rule task panicked", "tool", id, "path", path, "panic", r)
	d := types.Diagnostic{
		Code:     "LINTER_ERROR",
		Severity: types.SeverityLinterError,
		Body:     fmt.Sprintf("Rule execution failed at %s (%v). Manual review required.", path, r),
		Location: path,
		Tool:     id,
	}
	e.metrics.Diagnostic(d.Severity)
	out <- d
}
