package sweeper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingPromoter struct {
	calls atomic.Int32
	err   error
}

func (p *countingPromoter) PromoteAll(context.Context) (int, error) {
	p.calls.Add(1)
	return 1, p.err
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSweeperRunsOnStart(t *testing.T) {
	log := zerolog.Nop()
	p := &countingPromoter{}
	s := New(p, time.Hour, &log)

	s.Start(context.Background())
	waitFor(t, func() bool { return p.calls.Load() == 1 })
	s.Stop()

	if n := p.calls.Load(); n != 1 {
		t.Errorf("calls: got %d, want 1", n)
	}
}

func TestSweeperRunsEveryInterval(t *testing.T) {
	log := zerolog.Nop()
	p := &countingPromoter{err: errors.New("event 3: db locked")}
	s := New(p, 10*time.Millisecond, &log)

	s.Start(context.Background())
	waitFor(t, func() bool { return p.calls.Load() >= 3 })
	s.Stop()
}

func TestSweeperDefaultsInterval(t *testing.T) {
	log := zerolog.Nop()
	if s := New(&countingPromoter{}, 0, &log); s.interval != DefaultInterval {
		t.Errorf("interval: got %v", s.interval)
	}
}

func TestSweeperStopsWithContext(t *testing.T) {
	log := zerolog.Nop()
	ctx, cancel := context.WithCancel(context.Background())
	s := New(&countingPromoter{}, time.Hour, &log)

	s.Start(ctx)
	cancel()

	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("sweeper did not stop")
	}
}
