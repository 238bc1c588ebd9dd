package query

// This file contains the read side of the history store. Every call works on
// a single snapshot, so a call never observes a partially applied append.

import (
	"time"

	"github.com/perfgo/benchtrack/history"
	"github.com/perfgo/benchtrack/model"
	"github.com/perfgo/benchtrack/regression"
)

// Report is the outcome of checking one entry against its history
type Report struct {
	Tool    string
	Entry   *model.Entry
	Results map[string]regression.Result
	Summary regression.Summary
	// Store version the baseline was read from
	Version history.Version
}

// Regressed reports whether any measurement regressed
func (r *Report) Regressed() bool {
	return len(r.Summary.Regressed) > 0
}

// Service serves series and verdicts to renderers and notifiers
type Service struct {
	store    *history.Store
	detector *regression.Detector
}

func New(store *history.Store, detector *regression.Detector) *Service {
	return &Service{store: store, detector: detector}
}

func (s *Service) ListTools() []string {
	return s.store.Snapshot().Tools()
}

func (s *Service) ListMeasurements(tool string) ([]string, error) {
	return s.store.Snapshot().Measurements(tool)
}

// History returns the series of (tool, name), at most limit points when
// limit is positive.
func (s *Service) History(tool, name string, limit int) ([]model.Point, error) {
	return s.store.Snapshot().History(tool, name, limit)
}

func (s *Service) SeriesAsOf(tool, name string, cutoff time.Time) ([]model.Point, error) {
	return s.store.Snapshot().SeriesAsOf(tool, name, cutoff)
}

func (s *Service) Latest(tool, name string) (model.Measurement, error) {
	return s.store.Snapshot().Latest(tool, name)
}

// Export encodes the current state in the document format read by the
// dashboard renderer.
func (s *Service) Export(js bool) ([]byte, error) {
	return history.Encode(s.store.Snapshot(), js)
}

// Check compares entry with the points that precede it in the series of
// tool. If entry is stored, only older entries form the baseline. A window
// of zero uses the configured baseline window.
func (s *Service) Check(tool string, entry *model.Entry, window int) (*Report, error) {
	snap := s.store.Snapshot()
	return s.check(snap, tool, entry, window)
}

// CheckLatest checks the most recent entry of tool.
func (s *Service) CheckLatest(tool string) (*Report, error) {
	snap := s.store.Snapshot()
	entry, err := snap.LatestEntry(tool)
	if err != nil {
		return nil, err
	}
	return s.check(snap, tool, entry, 0)
}

func (s *Service) check(snap *history.Snapshot, tool string, entry *model.Entry, window int) (*Report, error) {
	if window == 0 {
		window = s.detector.Config().BaselineWindow
	}
	results, err := s.detector.CheckWindow(entry, snap.Baseline(tool, entry), window)
	if err != nil {
		return nil, err
	}
	return &Report{
		Tool:    tool,
		Entry:   entry,
		Results: results,
		Summary: regression.Summarize(results),
		Version: snap.Version(),
	}, nil
}
