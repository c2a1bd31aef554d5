// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlint/biolint/internal/linkcheck"
	"github.com/openlint/biolint/internal/rules"
	"github.com/openlint/biolint/pkg/types"
)

func newTestEngine(t *testing.T, ts *httptest.Server, workers int) *Engine {
	t.Helper()
	links := linkcheck.New(types.LinkConfig{MaxRedirects: 5, CacheSize: 64}, nil, nil)
	if ts != nil {
		links.SetTransport(ts.Client().Transport)
	}
	return New(rules.NewDispatcher(links, nil, nil, nil), workers, nil, nil)
}

func collect(e *Engine, rec types.Record, id string) []types.Diagnostic {
	out := make(chan types.Diagnostic, 128)
	e.Lint(context.Background(), rec, id, out)
	close(out)
	var got []types.Diagnostic
	for d := range out {
		got = append(got, d)
	}
	return got
}

func TestLintEmptyRecord(t *testing.T) {
	e := newTestEngine(t, nil, 1)

	got := collect(e, types.Record{}, "empty-tool")

	require.Len(t, got, 1)
	assert.Equal(t, CompletionCode, got[0].Code)
	assert.Equal(t, types.SeverityInternal, got[0].Severity)
	assert.Equal(t, "empty-tool", got[0].Tool)
}

func TestLintBrokenLink(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()
	e := newTestEngine(t, ts, 1)

	rec := types.Record{
		"name":     "toolA",
		"homepage": ts.URL,
	}
	got := collect(e, rec, "toolA")

	require.Len(t, got, 2)
	assert.Equal(t, "URL_BAD_STATUS", got[0].Code)
	assert.Equal(t, "toolA", got[0].Tool)
	assert.Equal(t, "toolA/homepage", got[0].Location)
	assert.Equal(t, CompletionCode, got[1].Code)
}

func TestLintMarkerAlwaysLast(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()
	e := newTestEngine(t, ts, 1)

	rec := types.Record{
		"name":        "toolA",
		"description": "",
		"homepage":    ts.URL,
		"link": []any{
			map[string]any{"url": ts.URL + "/a"},
			map[string]any{"url": ts.URL + "/b"},
		},
	}
	got := collect(e, rec, "toolA")

	require.NotEmpty(t, got)
	assert.Equal(t, CompletionCode, got[len(got)-1].Code)
	for _, d := range got[:len(got)-1] {
		assert.NotEqual(t, CompletionCode, d.Code)
		assert.Equal(t, "toolA", d.Tool)
	}
}

func TestLintPanicRecovered(t *testing.T) {
	e := New(rules.NewDispatcher(nil, nil, nil, nil), 1, nil, nil)

	out := make(chan types.Diagnostic, 8)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer e.recoverTask("toolX", "toolX/field", out)
		panic("boom")
	}()
	wg.Wait()
	close(out)

	var got []types.Diagnostic
	for d := range out {
		got = append(got, d)
	}
	require.Len(t, got, 1)
	assert.Equal(t, "LINTER_ERROR", got[0].Code)
	assert.Equal(t, types.SeverityLinterError, got[0].Severity)
	assert.Equal(t, "toolX/field", got[0].Location)
	assert.Contains(t, got[0].Body, "boom")
}

func TestLintAllBoundedParallelism(t *testing.T) {
	var active, peak atomic.Int32
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		active.Add(-1)
	}))
	defer ts.Close()
	e := newTestEngine(t, ts, 2)

	var tools []types.Tool
	for _, id := range []string{"t1", "t2", "t3", "t4", "t5", "t6"} {
		tools = append(tools, types.Tool{ID: id, Record: types.Record{
			"homepage": ts.URL + "/" + id,
		}})
	}

	out := make(chan types.Diagnostic, 256)
	require.NoError(t, e.LintAll(context.Background(), tools, out))
	close(out)

	markers := map[string]bool{}
	for d := range out {
		if d.Code == CompletionCode {
			markers[d.Tool] = true
		}
	}
	assert.Len(t, markers, 6)
	// Each record holds one in-flight request at a time, so the peak
	// request concurrency tracks the record-level bound.
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestLintDrainsAfterCancel(t *testing.T) {
	e := newTestEngine(t, nil, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Findings computed for an in-flight record are delivered even when
	// the context is already cancelled, marker included.
	out := make(chan types.Diagnostic, 8)
	e.Lint(ctx, types.Record{"description": ""}, "toolC", out)
	close(out)

	var got []types.Diagnostic
	for d := range out {
		got = append(got, d)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "IMPORTANT_KEY_EMPTY", got[0].Code)
	assert.Equal(t, CompletionCode, got[1].Code)
}

func TestLintBoundsPairFanOut(t *testing.T) {
	var active, peak atomic.Int32
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		active.Add(-1)
	}))
	defer ts.Close()
	e := newTestEngine(t, ts, 1)

	rec := types.Record{"link": []any{}}
	links := rec["link"].([]any)
	for i := 0; i < 3*pairWorkers; i++ {
		links = append(links, map[string]any{"url": fmt.Sprintf("%s/u%d", ts.URL, i)})
	}
	rec["link"] = links

	got := collect(e, rec, "toolD")
	assert.Equal(t, CompletionCode, got[len(got)-1].Code)
	assert.LessOrEqual(t, peak.Load(), int32(pairWorkers))
}

func TestLintAllCancelled(t *testing.T) {
	e := newTestEngine(t, nil, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan types.Diagnostic, 8)
	err := e.LintAll(ctx, []types.Tool{{ID: "t1", Record: types.Record{}}}, out)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLintInterleavedMarkersPerRecord(t *testing.T) {
	e := newTestEngine(t, nil, 4)

	tools := []types.Tool{
		{ID: "a", Record: types.Record{"name": "a"}},
		{ID: "b", Record: types.Record{"name": "b"}},
	}
	out := make(chan types.Diagnostic, 64)
	require.NoError(t, e.LintAll(context.Background(), tools, out))
	close(out)

	seenMarker := map[string]bool{}
	for d := range out {
		if d.Code == CompletionCode {
			assert.False(t, seenMarker[d.Tool], "duplicate marker for %s", d.Tool)
			seenMarker[d.Tool] = true
			continue
		}
		assert.False(t, seenMarker[d.Tool], "diagnostic for %s after its marker", d.Tool)
	}
	assert.Len(t, seenMarker, 2)
}
