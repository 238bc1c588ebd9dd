package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/perfgo/benchtrack/model"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	dir    string
	config string
	now    int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`
repoUrl: https://github.com/kaiteki-project/kaiteki
store:
  location: %s
  retries: 0
detector:
  baselineWindow: 2
  thresholdRatio: 0.1
  spreadMethod: mean-range
`, filepath.Join(dir, "data.js"))
	path := filepath.Join(dir, "benchtrack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return &testEnv{dir: dir, config: path}
}

func (e *testEnv) run(args ...string) (string, error) {
	var out bytes.Buffer
	app := New()
	app.stdout = &out
	app.gitDir = e.dir
	app.now = func() time.Time { return time.UnixMilli(e.now) }
	err := app.Run(append([]string{AppName, "--config", e.config}, args...))
	return out.String(), err
}

func (e *testEnv) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (e *testEnv) ingestCargo(t *testing.T, commitID string, value, rng int, extra ...string) (string, error) {
	t.Helper()
	input := e.write(t, "bench.txt", fmt.Sprintf(
		"running 1 test\ntest op ... bench:   %d ns/iter (+/- %d)\n\ntest result: ok.\n", value, rng))
	commit := e.write(t, "commit.json", fmt.Sprintf(`{"id": %q, "message": "bench"}`, commitID))
	args := []string{"ingest", "--tool", "Rust Benchmark", "--format", "cargo", "--input", input, "--commit-file", commit}
	return e.run(append(args, extra...)...)
}

var testCommits = []string{
	"c57b8175923d0b8171cddc8cec17c7a4eb75d54b",
	"f52d0da97c92352d767b5d44ff205d7bd3e50fd0",
	"0a1b2c3d4e5f60718293a4b5c6d7e8f901234567",
}

func TestIngestAndQuery(t *testing.T) {
	env := newTestEnv(t)

	env.now = 1000
	out, err := env.ingestCargo(t, testCommits[0], 1000, 50)
	require.NoError(t, err)
	require.Contains(t, out, "0 regressed, 0 improved, 0 stable, 1 insufficient")

	env.now = 2000
	_, err = env.ingestCargo(t, testCommits[1], 1010, 50)
	require.NoError(t, err)

	env.now = 3000
	out, err = env.ingestCargo(t, testCommits[2], 1600, 20, "--fail-on-regression")
	require.ErrorContains(t, err, "regressed")
	require.Contains(t, out, "✗  op  1600 ns/iter  baseline=1005")

	// The regressed run is recorded all the same.
	out, err = env.run("tools")
	require.NoError(t, err)
	require.Contains(t, out, "Rust Benchmark  entries=3")

	// Re-delivery of the last run is not stored again.
	env.now = 4000
	_, err = env.ingestCargo(t, testCommits[2], 1600, 20)
	require.NoError(t, err)
	out, err = env.run("tools")
	require.NoError(t, err)
	require.Contains(t, out, "Rust Benchmark  entries=3")

	out, err = env.run("measurements", "--tool", "Rust Benchmark")
	require.NoError(t, err)
	require.Contains(t, out, "op  1600 ns/iter (± 20)")

	out, err = env.run("latest", "--tool", "Rust Benchmark", "--name", "op")
	require.NoError(t, err)
	require.Equal(t, "1600 ns/iter (± 20)\n", out)

	out, err = env.run("series", "--tool", "Rust Benchmark", "--name", "op", "--json")
	require.NoError(t, err)
	var points []model.Point
	require.NoError(t, json.Unmarshal([]byte(out), &points))
	require.Len(t, points, 3)
	require.Equal(t, testCommits[0], points[0].CommitID)
	require.Equal(t, int64(3000), points[2].RecordedAt)

	out, err = env.run("series", "--tool", "Rust Benchmark", "--name", "op", "--limit", "1")
	require.NoError(t, err)
	require.Contains(t, out, "(1 points)")

	_, err = env.run("latest", "--tool", "Go Benchmark", "--name", "op")
	require.Error(t, err)
}

func TestCheck(t *testing.T) {
	env := newTestEnv(t)
	for i, v := range []int{1000, 1010, 1600} {
		env.now = int64(1000 * (i + 1))
		_, err := env.ingestCargo(t, testCommits[i], v, 50)
		require.NoError(t, err)
	}

	out, err := env.run("check", "--tool", "Rust Benchmark")
	require.NoError(t, err)
	require.Contains(t, out, "1 regressed")

	out, err = env.run("check", "--all", "--fail-on-regression")
	require.ErrorContains(t, err, "Rust Benchmark")
	require.Contains(t, out, "=== Rust Benchmark @ 0a1b2c3d ===")

	// Flags override the configured detector options.
	out, err = env.run("--window", "3", "--threshold", "0.7", "check", "--tool", "Rust Benchmark")
	require.NoError(t, err)
	require.Contains(t, out, "1 stable")

	_, err = env.run("check")
	require.Error(t, err)
	_, err = env.run("check", "--tool", "Rust Benchmark", "--notify")
	require.ErrorContains(t, err, "slack")
}

func TestInvalidDetectorConfig(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run("--window", "1", "check", "--tool", "Rust Benchmark")
	require.ErrorContains(t, err, "baselineWindow")
}

func TestPersist(t *testing.T) {
	env := newTestEnv(t)
	env.now = 1000
	_, err := env.ingestCargo(t, testCommits[0], 1000, 50)
	require.NoError(t, err)

	target := filepath.Join(env.dir, "export", "data.json.gz")
	_, err = env.run("persist", "--output", target)
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, []byte{0x1f, 0x8b}, data[:2])

	_, err = env.run("--data", target, "latest", "--tool", "Rust Benchmark", "--name", "op")
	require.NoError(t, err)
}

func TestWebURL(t *testing.T) {
	for _, tc := range []struct {
		remote string
		want   string
	}{
		{"https://github.com/kaiteki-project/kaiteki.git", "https://github.com/kaiteki-project/kaiteki"},
		{"https://token@github.com/kaiteki-project/kaiteki", "https://github.com/kaiteki-project/kaiteki"},
		{"git@github.com:kaiteki-project/kaiteki.git", "https://github.com/kaiteki-project/kaiteki"},
		{"ssh://git@github.com/kaiteki-project/kaiteki.git", "https://github.com/kaiteki-project/kaiteki"},
		{"/srv/git/kaiteki", ""},
	} {
		t.Run(tc.remote, func(t *testing.T) {
			require.Equal(t, tc.want, webURL(tc.remote))
		})
	}
}
