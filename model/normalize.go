package model

import (
	"encoding/hex"
	"math"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrValidation marks every error returned by Normalize.
var ErrValidation = errors.New("invalid benchmark entry")

var (
	ErrEmptyMeasurements = errors.New("harness produced no measurements")
	ErrDuplicateName     = errors.New("duplicate measurement name")
	ErrNegativeRange     = errors.New("negative measurement range")
	ErrEmptyName         = errors.New("empty measurement name")
	ErrInvalidValue      = errors.New("measurement is not a finite number")
	ErrInvalidCommit     = errors.New("invalid commit id")
	ErrEmptyTool         = errors.New("empty tool name")
)

func invalid(reason error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(reason, format, args...), ErrValidation)
}

// Normalize validates harness output and turns it into an Entry for toolName.
// RecordedAt is taken from now rather than the commit timestamp so ingestion
// order survives rebases and cherry-picks.
func Normalize(raw RawRun, commit Commit, toolName string, now time.Time) (*Entry, error) {
	if toolName == "" {
		return nil, errors.Mark(ErrEmptyTool, ErrValidation)
	}
	if len(raw.Measurements) == 0 {
		return nil, invalid(ErrEmptyMeasurements, "tool %q", toolName)
	}
	if err := validateCommitID(commit.ID); err != nil {
		return nil, err
	}

	if err := validateMeasurements(raw.Measurements); err != nil {
		return nil, err
	}

	return &Entry{
		Commit:       commit,
		RecordedAt:   now.UnixMilli(),
		Harness:      raw.Harness,
		Measurements: append([]Measurement(nil), raw.Measurements...),
		ToolName:     toolName,
	}, nil
}

// Validate checks the invariants every stored entry satisfies. Entries built
// by Normalize always pass.
func (e *Entry) Validate() error {
	if len(e.Measurements) == 0 {
		return invalid(ErrEmptyMeasurements, "commit %q", e.Commit.ShortID())
	}
	if err := validateCommitID(e.Commit.ID); err != nil {
		return err
	}
	return e.ValidateMeasurements()
}

// ValidateMeasurements checks names, values and ranges of the measurements
// only. Loaded documents may carry commit ids of other formats.
func (e *Entry) ValidateMeasurements() error {
	return validateMeasurements(e.Measurements)
}

func validateMeasurements(ms []Measurement) error {
	seen := make(map[string]struct{}, len(ms))
	for _, m := range ms {
		if m.Name == "" {
			return errors.Mark(ErrEmptyName, ErrValidation)
		}
		if _, ok := seen[m.Name]; ok {
			return invalid(ErrDuplicateName, "measurement %q", m.Name)
		}
		seen[m.Name] = struct{}{}

		if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) || math.IsNaN(float64(m.Range)) || math.IsInf(float64(m.Range), 0) {
			return invalid(ErrInvalidValue, "measurement %q", m.Name)
		}
		if m.Range < 0 {
			return invalid(ErrNegativeRange, "measurement %q has range %v", m.Name, float64(m.Range))
		}
	}
	return nil
}

// An empty id is allowed for local runs outside of a repository.
func validateCommitID(id string) error {
	if id == "" {
		return nil
	}
	if len(id) != 40 && len(id) != 64 {
		return invalid(ErrInvalidCommit, "%q has length %d", id, len(id))
	}
	if _, err := hex.DecodeString(id); err != nil {
		return invalid(ErrInvalidCommit, "%q is not hex", id)
	}
	return nil
}
