// Package ingest is the file ingestion core: a retrying executor around
// individual store statements, a transactional per-bundle writer, and a
// coordinator that serializes concurrent ingestion requests.
package ingest

import (
	"context"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog"

	"github.com/gyeh/careview/internal/store"
)

// Retry defaults. Each call site may override both.
const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = time.Second
)

// Executor wraps a single store statement with bounded retry on busy/lock
// contention. It knows nothing about the operation it runs: every statement
// of a transaction (begin, upsert, delete, insert, commit, rollback) is
// independently retry-safe through the same primitive.
type Executor struct {
	MaxAttempts uint
	Delay       time.Duration

	// RetryIf classifies retryable errors. Defaults to store.IsBusy.
	RetryIf func(error) bool

	Log zerolog.Logger
}

// NewExecutor returns an executor with the given budget, using store.IsBusy
// as the retry classifier. Zero values fall back to the defaults.
func NewExecutor(maxAttempts uint, delay time.Duration, log zerolog.Logger) Executor {
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if delay == 0 {
		delay = DefaultRetryDelay
	}
	return Executor{
		MaxAttempts: maxAttempts,
		Delay:       delay,
		RetryIf:     store.IsBusy,
		Log:         log,
	}
}

// Execute runs op, retrying on busy/lock contention up to MaxAttempts total
// attempts with a fixed delay between them. A non-busy failure is surfaced
// immediately. Exhausting the budget returns *StoreBusyError with the
// attempt count.
func (e Executor) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	retryIf := e.RetryIf
	if retryIf == nil {
		retryIf = store.IsBusy
	}

	attempts := 0
	err := retry.Do(
		func() error {
			attempts++
			return op(ctx)
		},
		retry.Attempts(e.MaxAttempts),
		retry.Delay(e.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(retryIf),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			e.Log.Warn().
				Uint("attempt", n+1).
				Uint("max_attempts", e.MaxAttempts).
				Dur("delay", e.Delay).
				Err(err).
				Msg("store busy, retrying")
		}),
	)
	if err == nil {
		return nil
	}
	if retryIf(err) {
		return &StoreBusyError{Attempts: attempts, Err: err}
	}
	return err
}
