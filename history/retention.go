package history

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/perfgo/benchtrack/model"
	"github.com/perfgo/benchtrack/regression"
)

// Retention bounds the number of entries kept per tool. The zero value keeps
// everything.
type Retention struct {
	// Maximum number of entries per tool, 0 for unbounded
	MaxEntries int
	// Maximum age of an entry relative to the newest entry of its tool, 0 for unbounded
	MaxAge time.Duration
}

// Validate rejects negative limits. Errors are marked regression.ErrConfig
// like every other configuration error.
func (r Retention) Validate() error {
	if r.MaxEntries < 0 {
		return errors.Mark(errors.Newf("retention maxEntries must not be negative, got %d", r.MaxEntries), regression.ErrConfig)
	}
	if r.MaxAge < 0 {
		return errors.Mark(errors.Newf("retention maxAge must not be negative, got %s", r.MaxAge), regression.ErrConfig)
	}
	return nil
}

// expired returns how many entries at the front of entries fall outside the
// retention window. The newest entry is never expired.
func (r Retention) expired(entries []*model.Entry) int {
	if len(entries) == 0 {
		return 0
	}
	drop := 0
	if r.MaxEntries > 0 && len(entries) > r.MaxEntries {
		drop = len(entries) - r.MaxEntries
	}
	if r.MaxAge > 0 {
		oldest := entries[len(entries)-1].RecordedAt - r.MaxAge.Milliseconds()
		for drop < len(entries)-1 && entries[drop].RecordedAt < oldest {
			drop++
		}
	}
	return drop
}

// evict drops whole entries from the front of l
func (r Retention) evict(l *toolLog) (*toolLog, int) {
	drop := r.expired(l.entries)
	if drop == 0 {
		return l, 0
	}
	kept := make([]*model.Entry, len(l.entries)-drop)
	copy(kept, l.entries[drop:])
	return newToolLog(kept), drop
}
