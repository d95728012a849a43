package waitlist

import (
	"context"
	"sync"
)

// eventLocks hands out one single-slot semaphore per event id. Slots are
// dropped once nobody holds or waits on them.
type eventLocks struct {
	mu    sync.Mutex
	slots map[int64]*lockSlot
}

type lockSlot struct {
	sem  chan struct{}
	refs int
}

func newEventLocks() *eventLocks {
	return &eventLocks{slots: make(map[int64]*lockSlot)}
}

// Acquire blocks until the event is free or ctx ends. The returned release
// is safe to call more than once.
func (l *eventLocks) Acquire(ctx context.Context, eventID int64) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[eventID]
	if !ok {
		s = &lockSlot{sem: make(chan struct{}, 1)}
		l.slots[eventID] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.sem
				l.drop(eventID, s)
			})
		}, nil
	case <-ctx.Done():
		l.drop(eventID, s)
		return nil, ctx.Err()
	}
}

func (l *eventLocks) drop(eventID int64, s *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(l.slots, eventID)
	}
}

func (l *eventLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
