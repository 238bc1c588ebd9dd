package query

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/perfgo/benchtrack/history"
	"github.com/perfgo/benchtrack/model"
	"github.com/perfgo/benchtrack/regression"
	"github.com/perfgo/benchtrack/storage"
	"github.com/stretchr/testify/require"
)

const tool = "Rust Benchmark"

var commits = []string{
	"c57b8175923d0b8171cddc8cec17c7a4eb75d54b",
	"f52d0da97c92352d767b5d44ff205d7bd3e50fd0",
	"0a1b2c3d4e5f60718293a4b5c6d7e8f901234567",
}

func newService(t *testing.T, values ...float64) (*Service, *history.Store) {
	t.Helper()
	ctx := context.Background()
	store, err := history.Open(ctx, storage.NewFile(filepath.Join(t.TempDir(), "data.js")))
	require.NoError(t, err)

	for i, v := range values {
		rng := 50.0
		if i == len(values)-1 {
			rng = 20
		}
		_, err := store.Ingest(ctx, tool, &model.Entry{
			Commit:     model.Commit{ID: commits[i]},
			RecordedAt: int64(1000 * (i + 1)),
			Harness:    "cargo",
			Measurements: []model.Measurement{
				{Name: "op", Value: v, Range: model.Range(rng), Unit: "ns/iter"},
			},
		}, time.Second)
		require.NoError(t, err)
	}

	detector, err := regression.New(regression.Config{
		BaselineWindow: 2,
		ThresholdRatio: 0.1,
		Spread:         regression.SpreadMeanRange,
	})
	require.NoError(t, err)
	return New(store, detector), store
}

func TestServiceReads(t *testing.T) {
	svc, _ := newService(t, 1000, 1010, 1600)

	require.Equal(t, []string{tool}, svc.ListTools())
	names, err := svc.ListMeasurements(tool)
	require.NoError(t, err)
	require.Equal(t, []string{"op"}, names)

	points, err := svc.History(tool, "op", 2)
	require.NoError(t, err)
	require.Len(t, points, 2)
	require.Equal(t, commits[1], points[0].CommitID)
	require.Equal(t, 1600.0, points[1].Value)

	points, err = svc.SeriesAsOf(tool, "op", time.UnixMilli(2000))
	require.NoError(t, err)
	require.Len(t, points, 2)

	latest, err := svc.Latest(tool, "op")
	require.NoError(t, err)
	require.Equal(t, 1600.0, latest.Value)

	_, err = svc.Latest("Go Benchmark", "op")
	require.True(t, errors.Is(err, history.ErrNotFound))

	data, err := svc.Export(true)
	require.NoError(t, err)
	require.Contains(t, string(data), "window.BENCHMARK_DATA = ")
}

func TestServiceCheckLatest(t *testing.T) {
	svc, _ := newService(t, 1000, 1010, 1600)

	report, err := svc.CheckLatest(tool)
	require.NoError(t, err)
	require.True(t, report.Regressed())
	require.Equal(t, []string{"op"}, report.Summary.Regressed)

	r := report.Results["op"]
	require.Equal(t, 2, r.Samples)
	require.InDelta(t, 1005, r.Baseline, 1e-9)
	require.InDelta(t, 50, r.Spread, 1e-9)

	_, err = svc.CheckLatest("Go Benchmark")
	require.True(t, errors.Is(err, history.ErrNotFound))
}

func TestServiceCheckStoredEntry(t *testing.T) {
	svc, store := newService(t, 1000, 1010, 1600)

	entries, err := store.Snapshot().Entries(tool)
	require.NoError(t, err)

	// Only entries older than the checked one form its baseline.
	report, err := svc.Check(tool, entries[1], 1)
	require.NoError(t, err)
	require.Equal(t, regression.Stable, report.Results["op"].Verdict)
	require.Equal(t, 1, report.Results["op"].Samples)

	report, err = svc.Check(tool, entries[0], 0)
	require.NoError(t, err)
	require.Equal(t, regression.Insufficient, report.Results["op"].Verdict)
}

func TestServiceCheckCandidate(t *testing.T) {
	svc, _ := newService(t, 1000)

	candidate := &model.Entry{
		Commit:     model.Commit{ID: commits[1]},
		RecordedAt: 2000,
		Measurements: []model.Measurement{
			{Name: "op", Value: 1600, Range: 20, Unit: "ns/iter"},
		},
	}
	report, err := svc.Check(tool, candidate, 1)
	require.NoError(t, err)
	require.Equal(t, regression.Regressed, report.Results["op"].Verdict)
	require.InDelta(t, 0.6, report.Results["op"].Delta, 1e-9)

	_, err = svc.Check(tool, candidate, -1)
	require.True(t, errors.Is(err, regression.ErrConfig))
}
