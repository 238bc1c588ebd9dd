package harness

import (
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/perfgo/benchtrack/model"
	"golang.org/x/perf/benchfmt"
	"gonum.org/v1/gonum/stat"
)

type goBenchKey struct {
	name string
	unit string
}

// parseGoBench reads go test -bench output. Every unit reported for a
// benchmark becomes a measurement; the first unit keeps the plain benchmark
// name, further units are named "<benchmark> - <unit>". Repeated runs of a
// benchmark (-count) are summarized as mean with the sample standard
// deviation as range.
func (p *Parser) parseGoBench(reader io.Reader) (model.RawRun, error) {
	var order []goBenchKey
	samples := make(map[goBenchKey][]float64)
	iters := make(map[goBenchKey]int)

	r := benchfmt.NewReader(reader, "go test -bench")
	for r.Scan() {
		switch rec := r.Result().(type) {
		case *benchfmt.Result:
			name := string(rec.Name.Full())
			for i, v := range rec.Values {
				value, unit := v.Value, v.Unit
				if v.OrigUnit != "" {
					value, unit = v.OrigValue, v.OrigUnit
				}
				key := goBenchKey{name: name, unit: unit}
				if i > 0 {
					key.name = name + " - " + unit
				}
				if _, ok := samples[key]; !ok {
					order = append(order, key)
				}
				samples[key] = append(samples[key], value)
				iters[key] += rec.Iters
			}
		case *benchfmt.SyntaxError:
			p.logger.Warn().Str("error", rec.Error()).Msg("Skipping malformed benchmark line")
		}
	}
	if err := r.Err(); err != nil {
		return model.RawRun{}, errors.Wrap(err, "failed to read go bench output")
	}

	run := model.RawRun{Harness: string(FormatGo)}
	for _, key := range order {
		values := samples[key]
		m := model.Measurement{
			Name:  key.name,
			Value: stat.Mean(values, nil),
			Unit:  key.unit,
		}
		if len(values) > 1 {
			m.Range = model.Range(stat.StdDev(values, nil))
			m.Extra = fmt.Sprintf("%d runs, %d times", len(values), iters[key])
		} else {
			m.Extra = fmt.Sprintf("%d times", iters[key])
		}
		run.Measurements = append(run.Measurements, m)
	}
	return run, nil
}
