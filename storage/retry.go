package storage

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lestrrat-go/backoff/v2"
	"github.com/rs/zerolog"
)

// Retrying wraps a backend and retries failures marked transient with
// exponential backoff. Permanent failures are returned immediately.
type Retrying struct {
	backend Backend
	policy  backoff.Policy
	logger  zerolog.Logger
}

// NewRetrying retries each operation at most retries times. A non-positive
// retry budget performs every operation once.
func NewRetrying(b Backend, retries int, logger zerolog.Logger) *Retrying {
	var policy backoff.Policy = backoff.NewNull()
	if retries > 0 {
		policy = backoff.Exponential(
			backoff.WithMinInterval(50*time.Millisecond),
			backoff.WithMaxInterval(5*time.Second),
			backoff.WithJitterFactor(0.1),
			backoff.WithMaxRetries(retries),
		)
	}
	return &Retrying{backend: b, policy: policy, logger: logger}
}

func (r *Retrying) String() string {
	return r.backend.String()
}

func (r *Retrying) Read(ctx context.Context) ([]byte, error) {
	var data []byte
	err := r.do(ctx, "read", func() error {
		var err error
		data, err = r.backend.Read(ctx)
		return err
	})
	return data, err
}

func (r *Retrying) Write(ctx context.Context, data []byte) error {
	return r.do(ctx, "write", func() error {
		return r.backend.Write(ctx, data)
	})
}

func (r *Retrying) do(ctx context.Context, op string, fn func() error) error {
	var err error
	attempt := 0
	b := r.policy.Start(ctx)
	for backoff.Continue(b) {
		attempt++
		err = fn()
		if err == nil || !IsTransient(err) {
			return err
		}
		r.logger.Warn().Err(err).
			Str("backend", r.backend.String()).
			Str("op", op).
			Int("attempt", attempt).
			Msg("Transient storage failure")
	}
	if err == nil {
		// The context ended before the first attempt.
		return ctx.Err()
	}
	return errors.Wrapf(err, "%s %s failed after %d attempts", op, r.backend, attempt)
}
