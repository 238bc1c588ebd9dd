package regression

// This file contains the comparison of a new benchmark entry against the
// recent history of each of its measurements.

import (
	"math"
	"sort"
	"strings"

	"github.com/perfgo/benchtrack/model"
	"gonum.org/v1/gonum/stat"
)

// Verdict is the outcome of comparing one measurement to its baseline
type Verdict string

const (
	Regressed    Verdict = "regressed"
	Improved     Verdict = "improved"
	Stable       Verdict = "stable"
	Insufficient Verdict = "insufficient"
)

// Direction tells which way a unit improves
type Direction int

const (
	LowerIsBetter  Direction = 1
	HigherIsBetter Direction = -1
)

// DirectionOf infers the direction from a unit. Rates ("ops/s", "MB/s")
// improve upwards, everything else (time, bytes and allocations per
// operation) improves downwards.
func DirectionOf(unit string) Direction {
	u := strings.ToLower(strings.TrimSpace(unit))
	for _, suffix := range []string{"/s", "/sec", "/second"} {
		if strings.HasSuffix(u, suffix) {
			return HigherIsBetter
		}
	}
	return LowerIsBetter
}

// Result holds the verdict for one measurement and the numbers behind it
type Result struct {
	Verdict   Verdict   `json:"verdict"`
	Value     float64   `json:"value"`
	Range     float64   `json:"range"`
	Unit      string    `json:"unit"`
	Baseline  float64   `json:"baseline"`
	Spread    float64   `json:"spread"`
	Delta     float64   `json:"delta"`
	Samples   int       `json:"samples"`
	Direction Direction `json:"direction"`
}

// Lookup returns the n most recent points of a measurement that precede the
// entry being checked, oldest first. n <= 0 returns all of them.
type Lookup func(name string, n int) []model.Point

// Detector applies a fixed configuration. It holds no other state, so the
// same entry, history and configuration always give the same verdicts.
type Detector struct {
	cfg Config
}

func New(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg}, nil
}

func (d *Detector) Config() Config {
	return d.cfg
}

// Check compares every measurement of entry with its configured baseline
// window.
func (d *Detector) Check(entry *model.Entry, lookup Lookup) map[string]Result {
	results, _ := d.CheckWindow(entry, lookup, d.cfg.BaselineWindow)
	return results
}

// CheckWindow is Check with an explicit baseline window. A window of one
// compares against the previous point only.
func (d *Detector) CheckWindow(entry *model.Entry, lookup Lookup, window int) (map[string]Result, error) {
	if window < 1 {
		return nil, configError("baseline window must be at least 1, got %d", window)
	}
	results := make(map[string]Result, len(entry.Measurements))
	for _, m := range entry.Measurements {
		results[m.Name] = d.compare(m, baseline(lookup(m.Name, 0), m.Unit, window), window)
	}
	return results, nil
}

// baseline keeps the last window points whose unit matches unit
func baseline(points []model.Point, unit string, window int) []model.Point {
	kept := make([]model.Point, 0, len(points))
	for _, p := range points {
		if p.Unit == unit {
			kept = append(kept, p)
		}
	}
	if len(kept) > window {
		kept = kept[len(kept)-window:]
	}
	return kept
}

func (d *Detector) compare(m model.Measurement, points []model.Point, window int) Result {
	r := Result{
		Verdict:   Insufficient,
		Value:     m.Value,
		Range:     float64(m.Range),
		Unit:      m.Unit,
		Samples:   len(points),
		Direction: DirectionOf(m.Unit),
	}
	if len(points) < min(2, window) {
		return r
	}

	values := make([]float64, len(points))
	ranges := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
		ranges[i] = p.Range
	}

	r.Baseline = stat.Mean(values, nil)
	switch d.cfg.Spread {
	case SpreadStdDev:
		if len(values) > 1 {
			r.Spread = stat.StdDev(values, nil)
		}
	default:
		r.Spread = stat.Mean(ranges, nil)
	}
	if r.Baseline == 0 {
		// No relative change can be expressed against a zero baseline.
		return r
	}
	r.Delta = (r.Value - r.Baseline) / math.Abs(r.Baseline)

	// A change only counts when the confidence bands do not overlap.
	t := d.cfg.ThresholdRatio
	up := r.Delta > t && r.Value-r.Range > r.Baseline+r.Spread
	down := r.Delta < -t && r.Value+r.Range < r.Baseline-r.Spread

	r.Verdict = Stable
	switch {
	case up && r.Direction == LowerIsBetter, down && r.Direction == HigherIsBetter:
		r.Verdict = Regressed
	case down && r.Direction == LowerIsBetter, up && r.Direction == HigherIsBetter:
		r.Verdict = Improved
	}
	return r
}

// Summary groups measurement names by verdict, each list sorted
type Summary struct {
	Regressed    []string
	Improved     []string
	Stable       []string
	Insufficient []string
}

func Summarize(results map[string]Result) Summary {
	var s Summary
	for name, r := range results {
		switch r.Verdict {
		case Regressed:
			s.Regressed = append(s.Regressed, name)
		case Improved:
			s.Improved = append(s.Improved, name)
		case Stable:
			s.Stable = append(s.Stable, name)
		default:
			s.Insufficient = append(s.Insufficient, name)
		}
	}
	for _, names := range [][]string{s.Regressed, s.Improved, s.Stable, s.Insufficient} {
		sort.Strings(names)
	}
	return s
}
