package model

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Person identifies a commit author or committer
type Person struct {
	// Display name
	Name string `json:"name"`
	// E-mail address
	Email string `json:"email"`
	// Handle on the source-control host
	Username string `json:"username"`
}

// Commit contains the provenance of a benchmarked revision. It is supplied by
// the CI system and treated as opaque apart from its ID.
type Commit struct {
	Author    Person `json:"author"`
	Committer Person `json:"committer"`
	// Whether the commit was new to the pushed ref
	Distinct bool `json:"distinct"`
	// Commit hash (40 or 64 hex characters)
	ID string `json:"id"`
	// Human readable commit message
	Message string `json:"message"`
	// RFC3339 commit timestamp, may be empty
	Timestamp string `json:"timestamp"`
	// Tree hash of the commit
	TreeID string `json:"tree_id"`
	// Link to the commit on the source-control host
	URL string `json:"url"`
}

// Time parses the commit timestamp. An absent timestamp yields the zero time.
func (c Commit) Time() (time.Time, error) {
	if c.Timestamp == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, c.Timestamp)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid commit timestamp %q", c.Timestamp)
	}
	return t, nil
}

// ShortID returns the first 8 characters of the commit ID
func (c Commit) ShortID() string {
	if len(c.ID) > 8 {
		return c.ID[:8]
	}
	return c.ID
}

// Measurement is one named benchmark result
type Measurement struct {
	// Benchmark name, stable across runs
	Name string `json:"name"`
	// Central estimate (mean or median)
	Value float64 `json:"value"`
	// Non-negative uncertainty of Value
	Range Range `json:"range"`
	// Unit of Value (e.g. "ns/iter"), descriptive only
	Unit string `json:"unit"`
	// Additional harness output (e.g. iteration count)
	Extra string `json:"extra,omitempty"`
}

// Entry represents a single benchmark run of one tool for one commit.
// Entries are never mutated once appended to a store.
type Entry struct {
	Commit Commit `json:"commit"`
	// Time the CI run completed, epoch milliseconds
	RecordedAt int64 `json:"date"`
	// Harness that produced the measurements (e.g. "cargo", "go")
	Harness string `json:"tool"`
	// Measurements in harness emission order
	Measurements []Measurement `json:"benches"`

	// Partition key of the store; implied by the document layout
	ToolName string `json:"-"`
}

// RawRun is the output of a benchmark harness before normalization
type RawRun struct {
	Harness      string
	Measurements []Measurement
}

// Recorded returns RecordedAt as a time.Time
func (e *Entry) Recorded() time.Time {
	return time.UnixMilli(e.RecordedAt)
}

// Measurement looks up a measurement by name
func (e *Entry) Measurement(name string) (Measurement, bool) {
	for _, m := range e.Measurements {
		if m.Name == name {
			return m, true
		}
	}
	return Measurement{}, false
}

// SameRun reports whether other carries the same commit, tool and ordered
// measurement names and values. It is the key used to drop duplicate CI
// deliveries.
func (e *Entry) SameRun(other *Entry) bool {
	if e.Commit.ID != other.Commit.ID || e.ToolName != other.ToolName {
		return false
	}
	if len(e.Measurements) != len(other.Measurements) {
		return false
	}
	for i := range e.Measurements {
		a, b := e.Measurements[i], other.Measurements[i]
		if a.Name != b.Name || a.Value != b.Value {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the entry
func (e *Entry) Clone() *Entry {
	c := *e
	c.Measurements = append([]Measurement(nil), e.Measurements...)
	return &c
}
