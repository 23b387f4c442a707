package history

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/faisalraja/testhttp/packages/core/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func report(failures int) *runner.Report {
	return &runner.Report{
		Files:     []string{"a.http", "b.http"},
		StartedAt: time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC),
		Duration:  250 * time.Millisecond,
		Success:   1,
		Failures:  failures,
		Definitions: []runner.DefinitionResult{
			{Name: "login", Method: "POST", URL: "http://api.test/login", Source: "a.http", Result: "pass", StatusCode: 200, Duration: 1500 * time.Microsecond},
			{
				Name: "me", Method: "GET", URL: "http://api.test/me", Source: "a.http", Result: "fail", StatusCode: 401,
				Assertions: []runner.AssertionResult{{Passed: true}, {Passed: false}, {Passed: false}},
			},
			{Name: "old", Method: "GET", URL: "http://api.test/old", Source: "b.http", Result: "unset", Skipped: true},
		},
		Latency: runner.LatencyStats{P50: 2 * time.Millisecond, P95: 5 * time.Millisecond, P99: 7 * time.Millisecond},
	}
}

func TestRecordAndGet(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	id, err := store.Record(ctx, report(1), nil)
	require.NoError(t, err)

	run, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, run.ID)
	assert.True(t, run.StartedAt.Equal(time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)))
	assert.Equal(t, 250*time.Millisecond, run.Duration)
	assert.Equal(t, []string{"a.http", "b.http"}, run.Files)
	assert.Equal(t, 1, run.Failures)
	assert.False(t, run.Passed())
	assert.Equal(t, 5*time.Millisecond, run.P95)

	require.Len(t, run.Definitions, 3)
	assert.Equal(t, "login", run.Definitions[0].Name)
	assert.Equal(t, 1500*time.Microsecond, run.Definitions[0].Duration)
	assert.Equal(t, 2, run.Definitions[1].Failed)
	assert.Equal(t, 401, run.Definitions[1].StatusCode)
	assert.True(t, run.Definitions[2].Skipped)
}

func TestRecord_RunError(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	id, err := store.Record(ctx, report(0), errors.New("cyclic dependency: a -> b -> a"))
	require.NoError(t, err)

	run, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "cyclic dependency: a -> b -> a", run.Error)
	assert.False(t, run.Passed())
}

func TestList(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.Record(ctx, report(i), nil)
		require.NoError(t, err)
	}

	runs, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 2, runs[0].Failures, "newest first")
	assert.Equal(t, 1, runs[1].Failures)
	assert.Empty(t, runs[0].Definitions)

	runs, err = store.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestPrune(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	var first int64
	for i := 0; i < 3; i++ {
		id, err := store.Record(ctx, report(0), nil)
		require.NoError(t, err)
		if i == 0 {
			first = id
		}
	}

	removed, err := store.Prune(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	_, err = store.Get(ctx, first)
	assert.True(t, errors.Is(err, sql.ErrNoRows))

	var count int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM definitions`).Scan(&count))
	assert.Equal(t, 3, count, "definitions of pruned runs are deleted")
}

func TestOpen_Prefixes(t *testing.T) {
	dir := t.TempDir()
	for _, prefix := range []string{"sqlite://", "sqlite:"} {
		store, err := Open(prefix + filepath.Join(dir, "h.db"))
		require.NoError(t, err)
		require.NoError(t, store.Close())
	}

	_, err := Open("  ")
	assert.Error(t, err)
}
