package model

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

const testCommitID = "c57b8175923d0b8171cddc8cec17c7a4eb75d54b"

func TestNormalize(t *testing.T) {
	now := time.UnixMilli(1614622177532)
	commit := Commit{ID: testCommitID, Message: "changed token"}

	tests := []struct {
		name    string
		raw     RawRun
		commit  Commit
		tool    string
		wantErr error
	}{
		{
			name: "valid",
			raw: RawRun{Harness: "cargo", Measurements: []Measurement{
				{Name: "b", Value: 2, Range: 1, Unit: "ns/iter"},
				{Name: "a", Value: 1, Range: 0, Unit: "ns/iter"},
			}},
			commit: commit,
			tool:   "Rust Benchmark",
		},
		{
			name:    "empty measurements",
			raw:     RawRun{Harness: "cargo"},
			commit:  commit,
			tool:    "Rust Benchmark",
			wantErr: ErrEmptyMeasurements,
		},
		{
			name: "duplicate name",
			raw: RawRun{Measurements: []Measurement{
				{Name: "a", Value: 1},
				{Name: "a", Value: 2},
			}},
			commit:  commit,
			tool:    "X",
			wantErr: ErrDuplicateName,
		},
		{
			name:    "negative range",
			raw:     RawRun{Measurements: []Measurement{{Name: "a", Value: 1, Range: -1}}},
			commit:  commit,
			tool:    "X",
			wantErr: ErrNegativeRange,
		},
		{
			name:    "empty name",
			raw:     RawRun{Measurements: []Measurement{{Value: 1}}},
			commit:  commit,
			tool:    "X",
			wantErr: ErrEmptyName,
		},
		{
			name:    "NaN value",
			raw:     RawRun{Measurements: []Measurement{{Name: "a", Value: math.NaN()}}},
			commit:  commit,
			tool:    "X",
			wantErr: ErrInvalidValue,
		},
		{
			name:    "short commit id",
			raw:     RawRun{Measurements: []Measurement{{Name: "a", Value: 1}}},
			commit:  Commit{ID: "c57b8175"},
			tool:    "X",
			wantErr: ErrInvalidCommit,
		},
		{
			name:    "non hex commit id",
			raw:     RawRun{Measurements: []Measurement{{Name: "a", Value: 1}}},
			commit:  Commit{ID: "zzzb8175923d0b8171cddc8cec17c7a4eb75d54b"},
			tool:    "X",
			wantErr: ErrInvalidCommit,
		},
		{
			name:    "empty tool",
			raw:     RawRun{Measurements: []Measurement{{Name: "a", Value: 1}}},
			commit:  commit,
			wantErr: ErrEmptyTool,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := Normalize(tt.raw, tt.commit, tt.tool, now)
			if tt.wantErr != nil {
				require.Error(t, err)
				require.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				require.True(t, errors.Is(err, ErrValidation))
				require.Nil(t, entry)
				return
			}
			require.NoError(t, err)
			require.Equal(t, now.UnixMilli(), entry.RecordedAt)
			require.Equal(t, tt.tool, entry.ToolName)
			require.Equal(t, tt.raw.Harness, entry.Harness)
			require.Equal(t, tt.raw.Measurements, entry.Measurements)
		})
	}
}

func TestNormalizeCopiesMeasurements(t *testing.T) {
	raw := RawRun{Measurements: []Measurement{{Name: "a", Value: 1}}}
	entry, err := Normalize(raw, Commit{}, "X", time.Now())
	require.NoError(t, err)

	raw.Measurements[0].Value = 99
	require.Equal(t, 1.0, entry.Measurements[0].Value)
}

func TestEntryValidate(t *testing.T) {
	entry, err := Normalize(RawRun{Measurements: []Measurement{{Name: "a", Value: 1, Range: 2}}}, Commit{ID: testCommitID}, "X", time.Now())
	require.NoError(t, err)
	require.NoError(t, entry.Validate())

	tests := []struct {
		name    string
		entry   *Entry
		wantErr error
	}{
		{name: "empty", entry: &Entry{}, wantErr: ErrEmptyMeasurements},
		{name: "duplicate", entry: &Entry{Measurements: []Measurement{{Name: "a"}, {Name: "a"}}}, wantErr: ErrDuplicateName},
		{name: "negative range", entry: &Entry{Measurements: []Measurement{{Name: "a", Range: -1}}}, wantErr: ErrNegativeRange},
		{name: "NaN", entry: &Entry{Measurements: []Measurement{{Name: "a", Value: math.NaN()}}}, wantErr: ErrInvalidValue},
		{name: "commit", entry: &Entry{Commit: Commit{ID: "abc"}, Measurements: []Measurement{{Name: "a"}}}, wantErr: ErrInvalidCommit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			require.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			require.True(t, errors.Is(err, ErrValidation))
		})
	}

	// Only the measurements are checked here.
	require.NoError(t, (&Entry{Commit: Commit{ID: "abc"}, Measurements: []Measurement{{Name: "a"}}}).ValidateMeasurements())
}

func TestSameRun(t *testing.T) {
	base := &Entry{
		Commit:   Commit{ID: testCommitID},
		ToolName: "X",
		Measurements: []Measurement{
			{Name: "a", Value: 1, Range: 2},
			{Name: "b", Value: 3},
		},
	}

	same := base.Clone()
	same.RecordedAt = 500
	same.Measurements[0].Range = 7
	require.True(t, base.SameRun(same))

	otherValue := base.Clone()
	otherValue.Measurements[1].Value = 4
	require.False(t, base.SameRun(otherValue))

	reordered := base.Clone()
	reordered.Measurements[0], reordered.Measurements[1] = reordered.Measurements[1], reordered.Measurements[0]
	require.False(t, base.SameRun(reordered))

	otherTool := base.Clone()
	otherTool.ToolName = "Y"
	require.False(t, base.SameRun(otherTool))
}

func TestRangeJSON(t *testing.T) {
	tests := []struct {
		in   string
		want Range
	}{
		{in: `"± 72642"`, want: 72642},
		{in: `"+/- 1,151,980"`, want: 1151980},
		{in: `"0.25"`, want: 0.25},
		{in: `33220`, want: 33220},
		{in: `""`, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var r Range
			require.NoError(t, json.Unmarshal([]byte(tt.in), &r))
			require.Equal(t, tt.want, r)
		})
	}

	var r Range
	require.Error(t, json.Unmarshal([]byte(`"± many"`), &r))

	out, err := json.Marshal(Range(0.1))
	require.NoError(t, err)
	require.Equal(t, `"± 0.1"`, string(out))
}

func TestCommitTime(t *testing.T) {
	c := Commit{Timestamp: "2021-03-01T19:02:38+01:00"}
	ts, err := c.Time()
	require.NoError(t, err)
	require.Equal(t, int64(1614621758), ts.Unix())

	ts, err = Commit{}.Time()
	require.NoError(t, err)
	require.True(t, ts.IsZero())

	_, err = Commit{Timestamp: "yesterday"}.Time()
	require.Error(t, err)
}
