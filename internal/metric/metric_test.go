// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlint/biolint/pkg/types"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	c.RecordLinted()
	c.RecordLinted()
	c.Diagnostic(types.SeverityMedium)
	c.Diagnostic(types.SeverityInternal) // not counted
	c.CacheLookup("url", true)
	c.CacheLookup("url", false)
	c.ConverterCall()

	assert.Equal(t, float64(2), testutil.ToFloat64(c.recordsLinted))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.diagnostics.WithLabelValues("medium")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.cacheLookups.WithLabelValues("url", "hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.cacheLookups.WithLabelValues("url", "miss")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.converterCalls))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	// Must not panic.
	c.RecordLinted()
	c.Diagnostic(types.SeverityHigh)
	c.CacheLookup("url", true)
	c.ConverterCall()
}

func TestDuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}
