// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlint/biolint/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(types.StoreConfig{Path: filepath.Join(t.TempDir(), "lint.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenEmptyPath(t *testing.T) {
	_, err := Open(types.StoreConfig{})
	assert.Error(t, err)
}

func TestReplaceToolRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	run := NewRunID()

	diags := []types.Diagnostic{
		{Code: "URL_BAD_STATUS", Severity: types.SeverityHigh, Body: "HTTP 404", Location: "blast/homepage", Tool: "blast"},
		{Code: "IMPORTANT_KEY_EMPTY", Severity: types.SeverityLow, Body: "empty", Location: "blast/description", Tool: "blast"},
	}
	require.NoError(t, s.ReplaceTool(ctx, run, "blast", diags))

	got, err := s.Messages(ctx, "blast")
	require.NoError(t, err)
	require.Len(t, got, 2)
	codes := []string{got[0].Code, got[1].Code}
	assert.Contains(t, codes, "URL_BAD_STATUS")
	assert.Contains(t, codes, "IMPORTANT_KEY_EMPTY")
	for _, d := range got {
		assert.Equal(t, "blast", d.Tool)
	}
}

func TestReplaceToolSkipsInternal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	diags := []types.Diagnostic{
		{Code: "URL_BAD_STATUS", Severity: types.SeverityHigh, Location: "blast/homepage"},
		{Code: "LINT-F", Severity: types.SeverityInternal, Location: "blast"},
	}
	require.NoError(t, s.ReplaceTool(ctx, NewRunID(), "blast", diags))

	got, err := s.Messages(ctx, "blast")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "URL_BAD_STATUS", got[0].Code)
}

func TestReplaceToolOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceTool(ctx, NewRunID(), "blast", []types.Diagnostic{
		{Code: "URL_TIMEOUT", Severity: types.SeverityMedium, Location: "blast/homepage"},
	}))
	require.NoError(t, s.ReplaceTool(ctx, NewRunID(), "blast", []types.Diagnostic{
		{Code: "URL_BAD_STATUS", Severity: types.SeverityHigh, Location: "blast/homepage"},
	}))

	got, err := s.Messages(ctx, "blast")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "URL_BAD_STATUS", got[0].Code)
}

func TestReplaceToolClean(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceTool(ctx, NewRunID(), "blast", []types.Diagnostic{
		{Code: "URL_BAD_STATUS", Severity: types.SeverityHigh, Location: "blast/homepage"},
	}))
	// A clean re-lint clears the previous findings.
	require.NoError(t, s.ReplaceTool(ctx, NewRunID(), "blast", nil))

	got, err := s.Messages(ctx, "blast")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	run := NewRunID()

	require.NoError(t, s.ReplaceTool(ctx, run, "blast", []types.Diagnostic{
		{Code: "URL_BAD_STATUS", Severity: types.SeverityHigh, Location: "blast/homepage"},
		{Code: "URL_BAD_STATUS", Severity: types.SeverityHigh, Location: "blast/link/0/url"},
	}))
	require.NoError(t, s.ReplaceTool(ctx, run, "clustalo", []types.Diagnostic{
		{Code: "EDAM_OBSOLETE", Severity: types.SeverityMedium, Location: "clustalo/topic/0/uri"},
	}))

	stats, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Messages)
	assert.Equal(t, 2, stats.Tools)
	assert.Equal(t, 2, stats.ByCode["URL_BAD_STATUS"])
	assert.Equal(t, 1, stats.ByCode["EDAM_OBSOLETE"])
	assert.Equal(t, 2, stats.ByLevel[types.SeverityHigh.String()])
	assert.Equal(t, 1, stats.ByLevel[types.SeverityMedium.String()])
}
