// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metric exposes lint-run counters as Prometheus metrics.
// A nil *Collector is a valid no-op receiver so components never need
// to guard their instrumentation calls.
package metric

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/openlint/biolint/pkg/types"
)

// Collector holds the Prometheus instruments for one engine instance.
type Collector struct {
	recordsLinted  prometheus.Counter
	diagnostics    *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	converterCalls prometheus.Counter
}

// New registers the lint counters with reg and returns the collector.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		recordsLinted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "biolint_records_linted_total",
			Help: "Records fully linted, including records with zero findings.",
		}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "biolint_diagnostics_total",
			Help: "Diagnostics emitted, by severity.",
		}, []string{"severity"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "biolint_cache_lookups_total",
			Help: "Cache lookups, by cache name and outcome.",
		}, []string{"cache", "outcome"}),
		converterCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "biolint_converter_requests_total",
			Help: "Requests sent to the identifier conversion service.",
		}),
	}

	for _, col := range []prometheus.Collector{
		c.recordsLinted, c.diagnostics, c.cacheLookups, c.converterCalls,
	} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("registering lint metrics: %w", err)
		}
	}
	return c, nil
}

// RecordLinted counts one completed record.
func (c *Collector) RecordLinted() {
	if c == nil {
		return
	}
	c.recordsLinted.Inc()
}

// Diagnostic counts one emitted diagnostic. Internal markers are not
// counted; they are bookkeeping, not findings.
func (c *Collector) Diagnostic(sev types.Severity) {
	if c == nil || sev == types.SeverityInternal {
		return
	}
	c.diagnostics.WithLabelValues(sev.String()).Inc()
}

// CacheLookup counts one cache probe for the named cache.
func (c *Collector) CacheLookup(name string, hit bool) {
	if c == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	c.cacheLookups.WithLabelValues(name, outcome).Inc()
}

// ConverterCall counts one outbound idconv request.
func (c *Collector) ConverterCall() {
	if c == nil {
		return
	}
	c.converterCalls.Inc()
}
