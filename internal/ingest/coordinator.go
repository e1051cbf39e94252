package ingest

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is the coordinator's lifecycle state.
type State int

const (
	Idle State = iota
	Processing
)

// Processor runs one ingestion job for a bundle file path.
type Processor interface {
	ProcessFile(ctx context.Context, path string) error
}

// Notifier is told that ingested data changed, after each successful job.
// Notification is fire-and-forget: a returned error is logged, never
// propagated.
type Notifier interface {
	DataChanged(ctx context.Context) error
}

// Coordinator serializes ingestion so at most one transaction runs against
// the store at a time. Requests arriving while a job is in flight wait in a
// FIFO backlog; a path already waiting is not queued twice. New-file
// events, file edits, and manual uploads can all arrive concurrently, and
// funneling them through one queue avoids the lock storms the retrying
// executor would otherwise have to absorb through backoff alone.
type Coordinator struct {
	proc     Processor
	notifier Notifier
	log      zerolog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []string
	queued map[string]bool
	state  State
}

func NewCoordinator(proc Processor, notifier Notifier, log zerolog.Logger) *Coordinator {
	c := &Coordinator{
		proc:     proc,
		notifier: notifier,
		log:      log,
		queued:   make(map[string]bool),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Submit queues path for ingestion and starts draining if the coordinator
// is idle. Returns false when the path is already waiting in the backlog.
func (c *Coordinator) Submit(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.queued[path] {
		c.log.Debug().Str("file", filepath.Base(path)).Msg("already queued, skipping")
		return false
	}
	c.queued[path] = true
	c.queue = append(c.queue, path)
	c.log.Info().Str("file", filepath.Base(path)).Int("backlog", len(c.queue)).Msg("queued for ingestion")

	if c.state == Idle {
		c.state = Processing
		go c.drain()
	}
	return true
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// WaitIdle blocks until the backlog is drained and the in-flight job, if
// any, has finished.
func (c *Coordinator) WaitIdle() {
	c.mu.Lock()
	for c.state != Idle {
		c.cond.Wait()
	}
	c.mu.Unlock()
}

func (c *Coordinator) drain() {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.state = Idle
			c.cond.Broadcast()
			c.mu.Unlock()
			return
		}
		path := c.queue[0]
		c.queue = c.queue[1:]
		// Once started, the path may be re-submitted; only the waiting
		// backlog is deduplicated.
		delete(c.queued, path)
		c.mu.Unlock()

		c.runJob(path)
	}
}

func (c *Coordinator) runJob(path string) {
	ctx := context.Background()
	log := c.log.With().
		Str("job_id", uuid.NewString()).
		Str("file", filepath.Base(path)).
		Logger()

	start := time.Now()
	if err := c.proc.ProcessFile(ctx, path); err != nil {
		// One bad file never halts ingestion of the files behind it.
		log.Error().Err(err).Dur("duration", time.Since(start)).Msg("ingestion job failed")
		return
	}
	log.Info().Dur("duration", time.Since(start)).Msg("ingestion job complete")

	if c.notifier == nil {
		return
	}
	if err := c.notifier.DataChanged(ctx); err != nil {
		log.Warn().Err(err).Msg("change notification failed")
	}
}
