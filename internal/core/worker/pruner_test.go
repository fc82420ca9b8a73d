package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingRepo struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (r *recordingRepo) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cutoffs = append(r.cutoffs, cutoff)
	return 1, r.err
}

func (r *recordingRepo) calls() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Time(nil), r.cutoffs...)
}

func TestPruner_Cutoff(t *testing.T) {
	repo := &recordingRepo{}
	p := NewPruner(24*time.Hour, repo)
	now := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	p.prune(context.Background())

	got := repo.calls()
	if len(got) != 1 || !got[0].Equal(now.Add(-24*time.Hour)) {
		t.Errorf("cutoffs = %v", got)
	}
}

func TestPruner_Disabled(t *testing.T) {
	repo := &recordingRepo{}
	p := NewPruner(0, repo)

	done := make(chan struct{})
	go func() {
		p.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start should return immediately when retention is disabled")
	}
	if len(repo.calls()) != 0 {
		t.Error("disabled pruner should not delete")
	}
}

func TestPruner_StartPrunesAndStops(t *testing.T) {
	repo := &recordingRepo{err: errors.New("db down")}
	p := NewPruner(time.Hour, repo)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	deadline := time.After(time.Second)
	for len(repo.calls()) == 0 {
		select {
		case <-deadline:
			t.Fatal("initial prune did not run")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
