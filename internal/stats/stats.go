package stats

import (
	"context"
	"time"
)

type Outcome string

const (
	Confirmed  Outcome = "confirmed"
	Waitlisted Outcome = "waitlisted"
	Updated    Outcome = "updated"
	Promoted   Outcome = "promoted"
	Cancelled  Outcome = "cancelled"
	Left       Outcome = "left"
)

// Event is one capacity decision for an event.
type Event struct {
	EventID int64
	UserID  int64
	Outcome Outcome
	At      time.Time
}

// Recorder persists decisions. Callers treat errors as best-effort.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

type Reader interface {
	Counters(ctx context.Context, eventID int64) (map[Outcome]int64, error)
}

type Store interface {
	Recorder
	Reader
}

type Noop struct{}

func (Noop) Record(context.Context, Event) error { return nil }

func (Noop) Counters(context.Context, int64) (map[Outcome]int64, error) {
	return map[Outcome]int64{}, nil
}
