package harness

import (
	"strings"
	"testing"

	"github.com/perfgo/benchtrack/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, format Format, output string) *Run {
	t.Helper()
	parser, err := NewParser(format, zerolog.Nop())
	require.NoError(t, err)
	run, err := parser.Parse(strings.NewReader(output))
	require.NoError(t, err)
	return run
}

func TestParseCargo(t *testing.T) {
	output := `
running 8 tests
test heightmap_large_checkerboard ... bench:     797,115 ns/iter (+/- 72,642)
test heightmap_planet             ... bench:   6,884,535 ns/iter (+/- 33,220)
test heightmap_small_checkerboard ... bench:       1,163 ns/iter (+/- 29)
test voxel_terrain                ... bench: 142,706,148 ns/iter (+/- 1,151,980)
test not_a_bench ... ok
test broken ... bench: fast

test result: ok. 0 passed; 0 failed; 0 ignored; 4 measured; 0 filtered out
`
	run := parse(t, FormatCargo, output)
	require.Equal(t, "cargo", run.Raw.Harness)
	require.Nil(t, run.Commit)
	require.Equal(t, []model.Measurement{
		{Name: "heightmap_large_checkerboard", Value: 797115, Range: 72642, Unit: "ns/iter"},
		{Name: "heightmap_planet", Value: 6884535, Range: 33220, Unit: "ns/iter"},
		{Name: "heightmap_small_checkerboard", Value: 1163, Range: 29, Unit: "ns/iter"},
		{Name: "voxel_terrain", Value: 142706148, Range: 1151980, Unit: "ns/iter"},
	}, run.Raw.Measurements)
}

func TestParseGoBench(t *testing.T) {
	output := `goos: linux
goarch: amd64
pkg: github.com/perfgo/benchtrack/examples
BenchmarkFalseSharing-8   	 1000000	      1000 ns/op	      16 B/op	       1 allocs/op
BenchmarkPadded-8         	 2000000	       500 ns/op
BenchmarkFalseSharing-8   	 1000000	      1200 ns/op	      16 B/op	       1 allocs/op
PASS
ok  	github.com/perfgo/benchtrack/examples	3.012s
`
	run := parse(t, FormatGo, output)
	require.Equal(t, "go", run.Raw.Harness)

	names := make([]string, 0, len(run.Raw.Measurements))
	for _, m := range run.Raw.Measurements {
		names = append(names, m.Name)
	}
	require.Equal(t, []string{
		"FalseSharing-8",
		"FalseSharing-8 - B/op",
		"FalseSharing-8 - allocs/op",
		"Padded-8",
	}, names)

	first := run.Raw.Measurements[0]
	require.Equal(t, "ns/op", first.Unit)
	require.InDelta(t, 1100, first.Value, 1e-9)
	require.InDelta(t, 141.42135623730951, float64(first.Range), 1e-9)
	require.Equal(t, "2 runs, 2000000 times", first.Extra)

	padded := run.Raw.Measurements[3]
	require.InDelta(t, 500, padded.Value, 1e-9)
	require.Equal(t, model.Range(0), padded.Range)
	require.Equal(t, "2000000 times", padded.Extra)
}

func TestParseRecord(t *testing.T) {
	output := `{
  "tool": "Rust Benchmark",
  "harness": "cargo",
  "commit": {"id": "c57b8175923d0b8171cddc8cec17c7a4eb75d54b", "message": "changed token"},
  "benches": [{"name": "op", "value": 1000, "range": "± 50", "unit": "ns"}]
}`
	run := parse(t, FormatJSON, output)
	require.Equal(t, "Rust Benchmark", run.Tool)
	require.Equal(t, "cargo", run.Raw.Harness)
	require.NotNil(t, run.Commit)
	require.Equal(t, "changed token", run.Commit.Message)
	require.Equal(t, []model.Measurement{{Name: "op", Value: 1000, Range: 50, Unit: "ns"}}, run.Raw.Measurements)

	parser, err := NewParser(FormatJSON, zerolog.Nop())
	require.NoError(t, err)
	_, err = parser.Parse(strings.NewReader(`{"benches": [`))
	require.Error(t, err)
}

func TestNewParserUnknownFormat(t *testing.T) {
	_, err := NewParser("criterion", zerolog.Nop())
	require.Error(t, err)
}
