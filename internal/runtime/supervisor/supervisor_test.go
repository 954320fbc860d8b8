package supervisor

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestGoRecordsFirstError(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	s.Go("ok", func(ctx context.Context) error { return nil })
	s.Go("bad", func(ctx context.Context) error { return errors.New("boom") })
	s.Go0("blocker", func(ctx context.Context) { <-ctx.Done() })

	time.Sleep(50 * time.Millisecond)
	err := s.Stop(waitCtx(t))
	if err == nil || !strings.Contains(err.Error(), "bad: boom") {
		t.Fatalf("Stop err = %v, want bad: boom", err)
	}
	snap := s.Snapshot()
	if snap.Active != 0 || len(snap.Goroutines) != 3 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestGoRecoversPanic(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), WithCancelOnError(true))
	s.Go0("panicky", func(ctx context.Context) { panic("oops") })
	if err := s.Wait(waitCtx(t)); err == nil || !strings.Contains(err.Error(), "oops") {
		t.Fatalf("Wait err = %v", err)
	}
	if s.Context().Err() == nil {
		t.Fatal("context not cancelled by panic with WithCancelOnError")
	}
	if got := s.Snapshot().Goroutines[0].Panics; got != 1 {
		t.Fatalf("Panics = %d, want 1", got)
	}
}

func TestGoRestartRetriesUntilSuccess(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	var runs atomic.Int32
	s.GoRestart("flaky", func(ctx context.Context) error {
		if runs.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, WithRestartBackoff(time.Millisecond, 2*time.Millisecond))

	if err := s.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if runs.Load() != 3 {
		t.Fatalf("runs = %d, want 3", runs.Load())
	}
	st := s.Snapshot().Goroutines[0]
	if st.Restarts != 2 || st.LastErr != "transient" {
		t.Fatalf("stats = %+v", st)
	}
}

func TestGoRestartGivesUp(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	var runs atomic.Int32
	s.GoRestart("doomed", func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("always")
	}, WithRestartBackoff(time.Millisecond, time.Millisecond), WithMaxRestarts(2))

	err := s.Wait(waitCtx(t))
	if err == nil || !strings.Contains(err.Error(), "doomed: always") {
		t.Fatalf("Wait err = %v", err)
	}
	if runs.Load() != 3 {
		t.Fatalf("runs = %d, want 3", runs.Load())
	}
}
