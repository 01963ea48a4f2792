package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/authgraph/authgraph/internal/authz"
	_ "github.com/authgraph/authgraph/testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGraphSweepCleanGraph(t *testing.T) {
	ctx := context.Background()
	store := authz.NewMemoryStore()
	_, err := store.Create(ctx, "admin", authz.TypeRole)
	require.NoError(t, err)
	_, err = store.Create(ctx, "editDoc", authz.TypePermission)
	require.NoError(t, err)
	require.NoError(t, store.AddChild(ctx, "admin", "editDoc"))

	job := NewGraphSweepJob(store, discardLogger())
	report, err := job.Sweep(ctx, true)
	require.NoError(t, err)
	require.Equal(t, 2, report.Items)
	require.Empty(t, report.DanglingEdges)
	require.Empty(t, report.CyclicRoles)
}

func TestGraphSweepReportsDanglingEdges(t *testing.T) {
	ctx := context.Background()
	store := authz.NewMemoryStore()
	_, err := store.Create(ctx, "admin", authz.TypeRole)
	require.NoError(t, err)
	require.NoError(t, store.AddChild(ctx, "admin", "ghost"))
	require.NoError(t, store.AddChild(ctx, "admin", "phantom"))

	report, err := NewGraphSweepJob(store, discardLogger()).Sweep(ctx, false)
	require.NoError(t, err)
	require.Len(t, report.DanglingEdges, 1)
	require.ElementsMatch(t, []string{"ghost", "phantom"}, report.DanglingEdges["admin"])
	require.Empty(t, report.CyclicRoles)
}

func TestGraphSweepReportsCycles(t *testing.T) {
	ctx := context.Background()
	store := authz.NewMemoryStore()
	for _, name := range []string{"a", "b"} {
		_, err := store.Create(ctx, name, authz.TypeRole)
		require.NoError(t, err)
	}
	require.NoError(t, store.AddChild(ctx, "a", "b"))
	require.NoError(t, store.AddChild(ctx, "b", "a"))

	report, err := NewGraphSweepJob(store, discardLogger()).Sweep(ctx, true)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, report.CyclicRoles)

	// Cycle detection can be skipped for cheap periodic runs.
	report, err = NewGraphSweepJob(store, discardLogger()).Sweep(ctx, false)
	require.NoError(t, err)
	require.Empty(t, report.CyclicRoles)
}

func TestGraphSweepSelfLoop(t *testing.T) {
	ctx := context.Background()
	store := authz.NewMemoryStore()
	_, err := store.Create(ctx, "loop", authz.TypeRole)
	require.NoError(t, err)
	require.NoError(t, store.AddChild(ctx, "loop", "loop"))

	report, err := NewGraphSweepJob(store, discardLogger()).Sweep(ctx, true)
	require.NoError(t, err)
	require.Equal(t, []string{"loop"}, report.CyclicRoles)
	require.Empty(t, report.DanglingEdges)
}
