package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type fakeStore struct {
	calls     atomic.Int32
	retention atomic.Int64
	err       error
	notify    chan struct{}
}

func (f *fakeStore) SweepExpired(_ context.Context, retention time.Duration) (int64, error) {
	f.calls.Add(1)
	f.retention.Store(int64(retention))
	select {
	case f.notify <- struct{}{}:
	default:
	}
	if f.err != nil {
		return 0, f.err
	}
	return 1, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweeperRunsImmediatelyThenOnTicker(t *testing.T) {
	store := &fakeStore{notify: make(chan struct{}, 16)}
	s := New(store, testLogger(), 20*time.Millisecond, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	// 启动即清扫一次
	select {
	case <-store.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("no immediate sweep on start")
	}

	// 之后按周期继续
	select {
	case <-store.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("no periodic sweep")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after context cancel")
	}

	if got := time.Duration(store.retention.Load()); got != time.Hour {
		t.Fatalf("retention = %v, want 1h", got)
	}
}

func TestSweeperKeepsRunningAfterError(t *testing.T) {
	store := &fakeStore{notify: make(chan struct{}, 16), err: errors.New("backend down")}
	s := New(store, testLogger(), 20*time.Millisecond, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	for i := 0; i < 2; i++ {
		select {
		case <-store.notify:
		case <-time.After(2 * time.Second):
			t.Fatalf("sweep #%d did not happen", i+1)
		}
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	s := New(&fakeStore{notify: make(chan struct{}, 1)}, testLogger(), 0, 0)
	if s.interval != 24*time.Hour {
		t.Fatalf("interval = %v, want 24h", s.interval)
	}
	if s.retention != 30*24*time.Hour {
		t.Fatalf("retention = %v, want 720h", s.retention)
	}
}
