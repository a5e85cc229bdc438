package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type fakeSweeper struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
}

func (f *fakeSweeper) SweepStale(_ context.Context, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, now)
	return 1, f.err
}

func (f *fakeSweeper) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeLeader struct {
	lead bool
	err  error
}

func (f fakeLeader) TryLead(context.Context) (bool, error) {
	return f.lead, f.err
}

func newTestScheduler(t *testing.T, cfg Config) *Scheduler {
	t.Helper()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNew_InvalidSchedule(t *testing.T) {
	if _, err := New(Config{Schedule: "bogus"}); err == nil {
		t.Error("expected error for invalid schedule")
	}
}

func TestTick(t *testing.T) {
	tests := []struct {
		name      string
		leader    Leader
		sweepErr  error
		wantCalls int
		wantErr   bool
	}{
		{"no leader configured", nil, nil, 1, false},
		{"leader", fakeLeader{lead: true}, nil, 1, false},
		{"follower skips", fakeLeader{lead: false}, nil, 0, false},
		{"election error", fakeLeader{err: errors.New("db down")}, nil, 0, true},
		{"sweep error", nil, errors.New("boom"), 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sw := &fakeSweeper{err: tt.sweepErr}
			s := newTestScheduler(t, Config{Sweeper: sw, Leader: tt.leader})

			err := s.Tick(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("Tick() error = %v, wantErr %v", err, tt.wantErr)
			}
			if sw.count() != tt.wantCalls {
				t.Errorf("SweepStale calls = %d, want %d", sw.count(), tt.wantCalls)
			}
		})
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	sw := &fakeSweeper{}
	s := newTestScheduler(t, Config{Sweeper: sw, Schedule: "1s"})

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want deadline exceeded", err)
	}
	if sw.count() < 1 {
		t.Errorf("expected at least one tick, got %d", sw.count())
	}
}
