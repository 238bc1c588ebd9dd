package harness

import (
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/perfgo/benchtrack/model"
)

// Record is the structured run record a CI job can submit instead of raw
// harness output.
type Record struct {
	// Store partition the run belongs to (e.g. "Rust Benchmark")
	Tool string `json:"tool"`
	// Harness that produced the measurements (e.g. "cargo")
	Harness string              `json:"harness,omitempty"`
	Commit  *model.Commit       `json:"commit,omitempty"`
	Benches []model.Measurement `json:"benches"`
}

func parseRecord(reader io.Reader) (*Run, error) {
	var rec Record
	dec := json.NewDecoder(reader)
	if err := dec.Decode(&rec); err != nil {
		return nil, errors.Wrap(err, "failed to decode run record")
	}
	if rec.Harness == "" {
		rec.Harness = string(FormatJSON)
	}
	return &Run{
		Raw: model.RawRun{
			Harness:      rec.Harness,
			Measurements: rec.Benches,
		},
		Commit: rec.Commit,
		Tool:   rec.Tool,
	}, nil
}
