// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pubcheck

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/openlint/biolint/pkg/types"
)

var kinds = [...]string{"DOI", "PMID", "PMCID"}

// Checker validates the publication entries of a record.
type Checker struct {
	conv   *Converter
	logger *slog.Logger
}

// NewChecker wraps conv in a record-level checker.
func NewChecker(conv *Converter, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{conv: conv, logger: logger}
}

// ClearCache drops the underlying converter cache.
func (p *Checker) ClearCache() { p.conv.ClearCache() }

// CheckRecord cross-checks every publication entry of rec. Entries are
// checked concurrently; diagnostic order follows resolution completion
// and is not guaranteed.
func (p *Checker) CheckRecord(ctx context.Context, rec types.Record) []types.Diagnostic {
	pubs, _ := rec["publication"].([]any)
	if len(pubs) == 0 {
		return nil
	}

	var (
		mu      sync.Mutex
		reports []types.Diagnostic
		wg      sync.WaitGroup
	)
	for i, pub := range pubs {
		entry, ok := pub.(map[string]any)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(i int, entry map[string]any) {
			defer wg.Done()
			found := p.checkOne(ctx,
				stringField(entry, "doi"),
				stringField(entry, "pmid"),
				stringField(entry, "pmcid"),
				"publication/"+strconv.Itoa(i))
			if len(found) > 0 {
				mu.Lock()
				reports = append(reports, found...)
				mu.Unlock()
			}
		}(i, entry)
	}
	wg.Wait()
	return reports
}

// checkOne cross-checks one publication entry. Every ordered pair among
// the declared identifiers is examined independently: a resolvable but
// undeclared counterpart is a missing cross-reference, a declared
// counterpart absent from the resolved set is a conflict. The two
// outcomes are mutually exclusive per pair.
func (p *Checker) checkOne(ctx context.Context, doi, pmid, pmcid, location string) []types.Diagnostic {
	declared := map[string]string{"DOI": doi, "PMID": pmid, "PMCID": pmcid}

	var reports []types.Diagnostic
	for _, from := range kinds {
		id := declared[from]
		if id == "" {
			continue
		}
		resolved, ok := p.conv.Resolve(ctx, id)
		if !ok {
			// Cannot verify; never reported as a defect.
			p.logger.Debug("identifier did not resolve", "kind", from, "id", id)
			continue
		}
		for _, to := range kinds {
			if to == from {
				continue
			}
			candidates := resolved.of(to)
			if len(candidates) == 0 {
				continue
			}
			if declared[to] == "" {
				reports = append(reports, types.Diagnostic{
					Code:     from + "_BUT_NOT_" + to,
					Severity: types.SeverityMedium,
					Body: fmt.Sprintf("Publication %s %s has a %s %s but it is not declared in the record",
						from, id, to, candidates[0]),
					Location: location,
				})
			} else if !matches(declared[to], candidates) {
				reports = append(reports, types.Diagnostic{
					Code:     to + "_DISCREPANCY",
					Severity: types.SeverityHigh,
					Body: fmt.Sprintf("Publication %s %s resolves to %s %s, which conflicts with the declared %s %s",
						from, id, to, candidates[0], to, declared[to]),
					Location: location,
				})
			}
		}
	}
	return reports
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	if s == "None" {
		return ""
	}
	return s
}
