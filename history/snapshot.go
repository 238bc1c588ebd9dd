package history

import (
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/perfgo/benchtrack/model"
)

// ErrNotFound is returned for tools or measurements that were never recorded.
var ErrNotFound = errors.New("not found")

// Version identifies one published state of a store. Every successful
// append or eviction produces a new version.
type Version uint64

// toolLog is the immutable entry sequence of one tool together with an index
// from measurement name to entry positions.
type toolLog struct {
	entries []*model.Entry
	series  map[string][]int
}

func newToolLog(entries []*model.Entry) *toolLog {
	l := &toolLog{
		entries: entries,
		series:  make(map[string][]int),
	}
	for i, e := range entries {
		for _, m := range e.Measurements {
			l.series[m.Name] = append(l.series[m.Name], i)
		}
	}
	return l
}

// appended returns a new log with e at the end. The receiver is not modified.
func (l *toolLog) appended(e *model.Entry) *toolLog {
	n := len(l.entries)
	next := &toolLog{
		entries: make([]*model.Entry, n, n+1),
		series:  make(map[string][]int, len(l.series)+len(e.Measurements)),
	}
	copy(next.entries, l.entries)
	next.entries = append(next.entries, e)

	for name, positions := range l.series {
		next.series[name] = positions
	}
	for _, m := range e.Measurements {
		old := next.series[m.Name]
		positions := make([]int, len(old), len(old)+1)
		copy(positions, old)
		next.series[m.Name] = append(positions, n)
	}
	return next
}

func (l *toolLog) last() *model.Entry {
	if l == nil || len(l.entries) == 0 {
		return nil
	}
	return l.entries[len(l.entries)-1]
}

// Snapshot is an immutable, complete view of a store. Readers hold on to a
// snapshot for as long as they like; appends publish new snapshots and never
// touch old ones.
type Snapshot struct {
	version    Version
	lastUpdate int64
	repoURL    string
	tools      map[string]*toolLog
}

func emptySnapshot(repoURL string) *Snapshot {
	return &Snapshot{
		repoURL: repoURL,
		tools:   make(map[string]*toolLog),
	}
}

// Version of the store this snapshot was taken at
func (s *Snapshot) Version() Version {
	return s.version
}

// LastUpdate is the largest RecordedAt of all entries, epoch milliseconds
func (s *Snapshot) LastUpdate() int64 {
	return s.lastUpdate
}

// RepoURL of the monitored repository
func (s *Snapshot) RepoURL() string {
	return s.repoURL
}

// Tools returns all tool names in lexical order
func (s *Snapshot) Tools() []string {
	names := make([]string, 0, len(s.tools))
	for name, l := range s.tools {
		if len(l.entries) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (s *Snapshot) tool(name string) (*toolLog, error) {
	l, ok := s.tools[name]
	if !ok || len(l.entries) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "tool %q", name)
	}
	return l, nil
}

func (s *Snapshot) series(tool, name string) (*toolLog, []int, error) {
	l, err := s.tool(tool)
	if err != nil {
		return nil, nil, err
	}
	positions, ok := l.series[name]
	if !ok || len(positions) == 0 {
		return nil, nil, errors.Wrapf(ErrNotFound, "measurement %q of tool %q", name, tool)
	}
	return l, positions, nil
}

// Len returns the number of entries stored for tool
func (s *Snapshot) Len(tool string) int {
	if l, ok := s.tools[tool]; ok {
		return len(l.entries)
	}
	return 0
}

// Entries returns copies of the entries of tool in stored order
func (s *Snapshot) Entries(tool string) ([]*model.Entry, error) {
	l, err := s.tool(tool)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Entry, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Clone()
	}
	return out, nil
}

// LatestEntry returns a copy of the most recent entry of tool
func (s *Snapshot) LatestEntry(tool string) (*model.Entry, error) {
	l, err := s.tool(tool)
	if err != nil {
		return nil, err
	}
	return l.last().Clone(), nil
}

// Measurements returns the names of all measurements ever recorded for tool
func (s *Snapshot) Measurements(tool string) ([]string, error) {
	l, err := s.tool(tool)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(l.series))
	for name, positions := range l.series {
		if len(positions) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// History returns the series of (tool, name) ordered by RecordedAt. A
// positive limit keeps only the most recent limit points.
func (s *Snapshot) History(tool, name string, limit int) ([]model.Point, error) {
	l, positions, err := s.series(tool, name)
	if err != nil {
		return nil, err
	}
	if limit > 0 && limit < len(positions) {
		positions = positions[len(positions)-limit:]
	}
	return project(l, name, positions), nil
}

// SeriesAsOf returns the points of (tool, name) recorded at or before
// cutoff. A zero cutoff returns the whole series.
func (s *Snapshot) SeriesAsOf(tool, name string, cutoff time.Time) ([]model.Point, error) {
	l, positions, err := s.series(tool, name)
	if err != nil {
		return nil, err
	}
	if !cutoff.IsZero() {
		limit := cutoff.UnixMilli()
		n := sort.Search(len(positions), func(i int) bool {
			return l.entries[positions[i]].RecordedAt > limit
		})
		positions = positions[:n]
	}
	return project(l, name, positions), nil
}

// Latest returns the most recent value of (tool, name)
func (s *Snapshot) Latest(tool, name string) (model.Measurement, error) {
	l, positions, err := s.series(tool, name)
	if err != nil {
		return model.Measurement{}, err
	}
	m, _ := l.entries[positions[len(positions)-1]].Measurement(name)
	return m, nil
}

// Baseline returns a lookup of the points that precede entry in the series
// of tool. When entry is not stored in this snapshot all stored points
// precede it. A copy of a stored entry is matched to the oldest stored run
// with the same date and values, so repeated runs never count themselves.
// The lookup returns at most n of the most recent points.
func (s *Snapshot) Baseline(tool string, entry *model.Entry) func(name string, n int) []model.Point {
	l, ok := s.tools[tool]
	if !ok {
		return func(string, int) []model.Point { return nil }
	}

	end := len(l.entries)
	for i := len(l.entries) - 1; i >= 0; i-- {
		e := l.entries[i]
		if e.RecordedAt < entry.RecordedAt {
			break
		}
		if e == entry {
			end = i
			break
		}
		if e.RecordedAt == entry.RecordedAt && e.SameRun(entry) {
			end = i
		}
	}

	return func(name string, n int) []model.Point {
		positions := l.series[name]
		cut := sort.SearchInts(positions, end)
		positions = positions[:cut]
		if n > 0 && n < len(positions) {
			positions = positions[len(positions)-n:]
		}
		return project(l, name, positions)
	}
}

func project(l *toolLog, name string, positions []int) []model.Point {
	points := make([]model.Point, 0, len(positions))
	for _, pos := range positions {
		e := l.entries[pos]
		m, _ := e.Measurement(name)
		points = append(points, model.PointOf(e, m))
	}
	return points
}
