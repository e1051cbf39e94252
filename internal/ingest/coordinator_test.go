package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// blockingProc records processed paths in order and can hold a job open
// until released.
type blockingProc struct {
	mu        sync.Mutex
	processed []string
	release   chan struct{}
	started   chan string
	fail      map[string]bool
}

func newBlockingProc() *blockingProc {
	return &blockingProc{
		release: make(chan struct{}),
		started: make(chan string, 16),
		fail:    make(map[string]bool),
	}
}

func (p *blockingProc) ProcessFile(ctx context.Context, path string) error {
	p.started <- path
	<-p.release

	p.mu.Lock()
	p.processed = append(p.processed, path)
	p.mu.Unlock()

	if p.fail[path] {
		return errors.New("synthetic job failure")
	}
	return nil
}

func (p *blockingProc) order() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.processed...)
}

type countingNotifier struct {
	mu    sync.Mutex
	count int
	err   error
}

func (n *countingNotifier) DataChanged(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.count++
	return n.err
}

func (n *countingNotifier) calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.count
}

func waitStarted(t *testing.T, p *blockingProc) string {
	t.Helper()
	select {
	case path := <-p.started:
		return path
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a job to start")
		return ""
	}
}

func TestCoordinator_SerializesAndPreservesOrder(t *testing.T) {
	proc := newBlockingProc()
	notifier := &countingNotifier{}
	c := NewCoordinator(proc, notifier, zerolog.Nop())

	if !c.Submit("a.json") {
		t.Fatal("first submit must be accepted")
	}
	waitStarted(t, proc) // a.json is now in flight

	// Arrive while processing: queued, deduped, processed in order after.
	if !c.Submit("b.json") {
		t.Fatal("b.json must be accepted")
	}
	if !c.Submit("c.json") {
		t.Fatal("c.json must be accepted")
	}
	if c.Submit("b.json") {
		t.Error("duplicate queued path must be rejected")
	}
	if c.State() != Processing {
		t.Errorf("state: got %v, want Processing", c.State())
	}

	// Release all three jobs.
	for i := 0; i < 3; i++ {
		proc.release <- struct{}{}
	}
	// b and c start only after their predecessor completes.
	waitStarted(t, proc)
	waitStarted(t, proc)
	c.WaitIdle()

	want := []string{"a.json", "b.json", "c.json"}
	got := proc.order()
	if len(got) != len(want) {
		t.Fatalf("processed: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("processed order: got %v, want %v", got, want)
		}
	}
	if c.State() != Idle {
		t.Errorf("state after drain: got %v, want Idle", c.State())
	}
	if notifier.calls() != 3 {
		t.Errorf("notifications: got %d, want 3", notifier.calls())
	}
}

func TestCoordinator_FailureDoesNotStopQueue(t *testing.T) {
	proc := newBlockingProc()
	proc.fail["bad.json"] = true
	notifier := &countingNotifier{}
	c := NewCoordinator(proc, notifier, zerolog.Nop())

	c.Submit("bad.json")
	waitStarted(t, proc)
	c.Submit("good.json")

	proc.release <- struct{}{}
	waitStarted(t, proc)
	proc.release <- struct{}{}
	c.WaitIdle()

	got := proc.order()
	if len(got) != 2 || got[1] != "good.json" {
		t.Fatalf("processed: got %v, want [bad.json good.json]", got)
	}
	// Only the successful job notifies.
	if notifier.calls() != 1 {
		t.Errorf("notifications: got %d, want 1", notifier.calls())
	}
}

func TestCoordinator_NotifierErrorIsSwallowed(t *testing.T) {
	proc := newBlockingProc()
	notifier := &countingNotifier{err: errors.New("listener down")}
	c := NewCoordinator(proc, notifier, zerolog.Nop())

	c.Submit("a.json")
	waitStarted(t, proc)
	proc.release <- struct{}{}
	c.WaitIdle()

	if notifier.calls() != 1 {
		t.Errorf("notifications: got %d, want 1", notifier.calls())
	}
	if c.State() != Idle {
		t.Errorf("state: got %v, want Idle", c.State())
	}
}

func TestCoordinator_ResubmitAfterStartAccepted(t *testing.T) {
	proc := newBlockingProc()
	c := NewCoordinator(proc, nil, zerolog.Nop())

	c.Submit("a.json")
	waitStarted(t, proc)

	// a.json has been dequeued; submitting it again while in flight queues
	// a fresh job.
	if !c.Submit("a.json") {
		t.Error("re-submission of an in-flight path must be accepted")
	}

	proc.release <- struct{}{}
	waitStarted(t, proc)
	proc.release <- struct{}{}
	c.WaitIdle()

	if got := proc.order(); len(got) != 2 {
		t.Fatalf("processed: got %v, want two runs of a.json", got)
	}
}
