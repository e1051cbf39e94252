package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

func busyErr() error {
	return &pgconn.PgError{Code: pgerrcode.LockNotAvailable, Message: "lock not available"}
}

func testExecutor(maxAttempts uint) Executor {
	e := NewExecutor(maxAttempts, time.Millisecond, zerolog.Nop())
	return e
}

func TestExecute_SucceedsFirstAttempt(t *testing.T) {
	exec := testExecutor(3)

	calls := 0
	err := exec.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}

func TestExecute_BusyThenSuccess(t *testing.T) {
	exec := testExecutor(3)

	calls := 0
	err := exec.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return busyErr()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
}

func TestExecute_BusyExhausted(t *testing.T) {
	exec := testExecutor(3)

	calls := 0
	err := exec.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return busyErr()
	})

	var busy *StoreBusyError
	if !errors.As(err, &busy) {
		t.Fatalf("expected *StoreBusyError, got %v", err)
	}
	if busy.Attempts != 3 {
		t.Errorf("attempts: got %d, want 3", busy.Attempts)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
}

func TestExecute_NonBusyNotRetried(t *testing.T) {
	exec := testExecutor(3)

	boom := errors.New("column does not exist")
	calls := 0
	err := exec.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected original error, got %v", err)
	}
	var busy *StoreBusyError
	if errors.As(err, &busy) {
		t.Fatal("non-busy error must not become StoreBusyError")
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}

func TestNewExecutor_Defaults(t *testing.T) {
	exec := NewExecutor(0, 0, zerolog.Nop())
	if exec.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("max attempts: got %d, want %d", exec.MaxAttempts, DefaultMaxAttempts)
	}
	if exec.Delay != DefaultRetryDelay {
		t.Errorf("delay: got %s, want %s", exec.Delay, DefaultRetryDelay)
	}
}
