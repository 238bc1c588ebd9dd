package history

// This file contains the append-only benchmark history store: a single
// writer per tool publishes immutable snapshots that any number of readers
// can use without locking.

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/perfgo/benchtrack/model"
	"github.com/perfgo/benchtrack/storage"
	"github.com/rs/zerolog"
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("store is closed")

// Receipt describes the outcome of an ingestion
type Receipt struct {
	// Store version containing the entry
	Version Version
	// Whether Version has been written to the backend
	Durable bool
	// Whether the entry was a re-delivery of the last entry of its tool
	Duplicate bool
	// The entry as stored
	Entry *model.Entry
}

type Option func(*Store)

// WithRetention configures eviction of old entries on append
func WithRetention(r Retention) Option {
	return func(s *Store) { s.retention = r }
}

// WithRepoURL sets the repository URL recorded in the document. It only
// applies when the loaded document has none.
func WithRepoURL(url string) Option {
	return func(s *Store) { s.repoURL = url }
}

// WithLogger sets the logger used for store events
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithScriptPrefix controls whether persisted documents carry the
// "window.BENCHMARK_DATA = " prefix. It defaults to true for .js locations.
func WithScriptPrefix(js bool) Option {
	return func(s *Store) { s.js = js; s.jsSet = true }
}

// Store is the benchmark history of one monitored repository.
type Store struct {
	logger    zerolog.Logger
	backend   storage.Backend
	retention Retention
	repoURL   string
	js        bool
	jsSet     bool

	current atomic.Pointer[Snapshot]
	// publishMu serializes the swap of the top-level tool map.
	publishMu sync.Mutex

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	// persistMu serializes backend writes so versions land in order.
	persistMu sync.Mutex
	durable   atomic.Uint64

	// closeMu is held shared by appends and exclusively by Close, so no
	// append publishes after Close has taken its final snapshot.
	closeMu sync.RWMutex
	closed  bool
}

// Open loads the full store document from backend. A missing document yields
// an empty store.
func Open(ctx context.Context, backend storage.Backend, opts ...Option) (*Store, error) {
	s := &Store{
		logger:  zerolog.Nop(),
		backend: backend,
		locks:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.retention.Validate(); err != nil {
		return nil, err
	}
	if !s.jsSet {
		name := backend.String()
		s.js = strings.HasSuffix(name, ".js") || strings.HasSuffix(name, ".js.gz")
	}

	snap := emptySnapshot(s.repoURL)
	data, err := backend.Read(ctx)
	switch {
	case err == nil:
		loaded, reordered, err := Decode(data)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load %s", backend)
		}
		for _, tool := range reordered {
			s.logger.Warn().Str("tool", tool).Msg("Entries were not ordered by date, reordered on load")
		}
		if loaded.repoURL == "" {
			loaded.repoURL = s.repoURL
		}
		snap = loaded
	case errors.Is(err, storage.ErrNotExist):
		s.logger.Debug().Str("location", backend.String()).Msg("No store document yet, starting empty")
	default:
		return nil, errors.Wrapf(err, "failed to load %s", backend)
	}

	s.current.Store(snap)
	s.durable.Store(uint64(snap.version))
	s.logger.Debug().
		Str("location", backend.String()).
		Int("tools", len(snap.tools)).
		Msg("Loaded benchmark history")
	return s, nil
}

// Snapshot returns the latest published state of the store
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// DurableVersion returns the newest version written to the backend
func (s *Store) DurableVersion() Version {
	return Version(s.durable.Load())
}

// IsDurable reports whether v has been written to the backend
func (s *Store) IsDurable(v Version) bool {
	return s.DurableVersion() >= v
}

func (s *Store) lockTool(tool string) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[tool]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[tool] = mu
	}
	s.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// Append adds entry to the end of the sequence of toolName and publishes a
// new version. If entry repeats the last entry of the tool (same commit and
// measurement values) nothing is appended and the current version is
// returned. The entry is copied; the caller keeps ownership of its value.
func (s *Store) Append(toolName string, entry *model.Entry) (Version, error) {
	unlock := s.lockTool(toolName)
	defer unlock()

	r, err := s.appendLocked(toolName, entry)
	return r.Version, err
}

func (s *Store) appendLocked(toolName string, entry *model.Entry) (Receipt, error) {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return Receipt{}, ErrClosed
	}
	if toolName == "" {
		return Receipt{}, errors.Mark(model.ErrEmptyTool, model.ErrValidation)
	}
	if err := entry.Validate(); err != nil {
		return Receipt{}, err
	}

	stored := entry.Clone()
	stored.ToolName = toolName

	cur := s.current.Load()
	log, ok := cur.tools[toolName]
	if !ok {
		log = newToolLog(nil)
	}

	if last := log.last(); last != nil {
		if last.SameRun(stored) {
			s.logger.Debug().
				Str("tool", toolName).
				Str("commit", stored.Commit.ShortID()).
				Msg("Dropping re-delivered run")
			return Receipt{Version: cur.version, Duplicate: true, Entry: last.Clone()}, nil
		}
		if stored.RecordedAt < last.RecordedAt {
			s.logger.Debug().
				Str("tool", toolName).
				Int64("recorded_at", stored.RecordedAt).
				Int64("last_recorded_at", last.RecordedAt).
				Msg("Clamping entry date to keep the series ordered")
			stored.RecordedAt = last.RecordedAt
		}
	}

	next, evicted := s.retention.evict(log.appended(stored))
	if evicted > 0 {
		s.logger.Debug().Str("tool", toolName).Int("evicted", evicted).Msg("Evicted entries outside retention")
	}

	v := s.publish(toolName, next, stored.RecordedAt)
	s.logger.Debug().
		Str("tool", toolName).
		Str("commit", stored.Commit.ShortID()).
		Int("measurements", len(stored.Measurements)).
		Uint64("version", uint64(v)).
		Msg("Appended entry")
	return Receipt{Version: v, Entry: stored.Clone()}, nil
}

// publish installs log as the sequence of tool in a new snapshot. Callers
// hold the lock of tool, so log was derived from the tool's current state.
func (s *Store) publish(tool string, log *toolLog, recordedAt int64) Version {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	cur := s.current.Load()
	next := &Snapshot{
		version:    cur.version + 1,
		lastUpdate: cur.lastUpdate,
		repoURL:    cur.repoURL,
		tools:      make(map[string]*toolLog, len(cur.tools)+1),
	}
	for name, l := range cur.tools {
		next.tools[name] = l
	}
	next.tools[tool] = log
	if recordedAt > next.lastUpdate {
		next.lastUpdate = recordedAt
	}
	s.current.Store(next)
	return next.version
}

// Persist writes the latest snapshot to the backend. Writes are serialized
// and a snapshot is only written if it is newer than the durable version.
func (s *Store) Persist(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	snap := s.current.Load()
	if s.IsDurable(snap.version) {
		return nil
	}

	data, err := Encode(snap, s.js)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := s.backend.Write(ctx, data); err != nil {
		return errors.Wrapf(err, "failed to persist version %d", snap.version)
	}
	s.durable.Store(uint64(snap.version))

	s.logger.Info().
		Str("location", s.backend.String()).
		Uint64("version", uint64(snap.version)).
		Int("bytes", len(data)).
		Dur("took", time.Since(start)).
		Msg("Persisted benchmark history")
	return nil
}

// Ingest appends entry and persists the result while holding the lock of
// its tool, so concurrent ingestions of the same tool observe each other in
// order. The appended entry is visible to readers before the write starts.
// If persisting fails or exceeds timeout the entry stays in memory, the
// receipt reports it as not durable and the error is returned; the caller
// retries with Persist.
func (s *Store) Ingest(ctx context.Context, toolName string, entry *model.Entry, timeout time.Duration) (Receipt, error) {
	unlock := s.lockTool(toolName)
	defer unlock()

	r, err := s.appendLocked(toolName, entry)
	if err != nil {
		return Receipt{}, err
	}
	if s.IsDurable(r.Version) {
		r.Durable = true
		return r, nil
	}

	pctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	err = s.Persist(pctx)
	r.Durable = s.IsDurable(r.Version)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("tool", toolName).
			Uint64("version", uint64(r.Version)).
			Msg("Entry is not yet durable")
	}
	return r, err
}

// Close persists pending versions and rejects further writes.
func (s *Store) Close(ctx context.Context) error {
	s.closeMu.Lock()
	wasClosed := s.closed
	s.closed = true
	s.closeMu.Unlock()
	if wasClosed {
		return nil
	}
	return s.Persist(ctx)
}
