// Package waitlist allocates event capacity: it admits RSVPs against
// maxAttendees, keeps a dense FIFO waiting list per event and promotes queued
// users when seats free up.
//
// Every mutation for an event runs under that event's lock and inside one
// repository transaction holding the event row. Notifications are sent after
// commit and never roll anything back.
package waitlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"eventWaitlist/internal/model"
	"eventWaitlist/internal/repo"
	"eventWaitlist/internal/stats"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrEventNotFound     = fmt.Errorf("event %w", ErrNotFound)
	ErrUserNotFound      = fmt.Errorf("user %w", ErrNotFound)
	ErrRsvpNotFound      = fmt.Errorf("rsvp %w", ErrNotFound)
	ErrNotWaitlisted     = fmt.Errorf("waiting list entry %w", ErrNotFound)
	ErrAlreadyWaitlisted = errors.New("user is already on the waiting list")
	ErrInvalidStatus     = errors.New("invalid rsvp status")
	ErrEventArchived     = errors.New("event is archived")
	// ErrCapacityInvariant means an operation would leave more confirmed
	// attendees than maxAttendees. The transaction is rolled back.
	ErrCapacityInvariant = errors.New("capacity invariant violated")
	ErrDispatch          = errors.New("notification dispatch failed")
)

type NotificationKind string

const (
	KindSpotAvailable  NotificationKind = "SPOT_AVAILABLE"
	KindWaitlisted     NotificationKind = "WAITLISTED"
	KindConfirmed      NotificationKind = "RSVP_CONFIRMATION"
	KindEventCancelled NotificationKind = "EVENT_CANCELLED"
)

type Payload struct {
	EventTitle string
	StartDate  time.Time
	Location   string
	Status     model.RsvpStatus
	GuestCount int
	Position   int
}

type Dispatcher interface {
	Notify(ctx context.Context, userID, eventID int64, kind NotificationKind, payload Payload) error
}

type noopDispatcher struct{}

func (noopDispatcher) Notify(context.Context, int64, int64, NotificationKind, Payload) error {
	return nil
}

type Engine struct {
	repo       repo.Repository
	dispatcher Dispatcher
	stats      stats.Recorder
	locks      *eventLocks
	log        *zerolog.Logger
}

type Option func(*Engine)

func WithStats(r stats.Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.stats = r
		}
	}
}

func New(r repo.Repository, d Dispatcher, log *zerolog.Logger, opts ...Option) *Engine {
	if d == nil {
		d = noopDispatcher{}
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	e := &Engine{
		repo:       r,
		dispatcher: d,
		stats:      stats.Noop{},
		locks:      newEventLocks(),
		log:        log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CancelRsvp drops the user's attendance record and promotes from the
// waiting list into the freed seat. Once the record is gone the follow-up
// promotion runs to completion even if ctx ends.
func (e *Engine) CancelRsvp(ctx context.Context, userID, eventID int64) error {
	release, err := e.locks.Acquire(ctx, eventID)
	if err != nil {
		return err
	}
	defer release()

	err = e.repo.WithEventTx(ctx, eventID, func(tx repo.Tx) error {
		return tx.DeleteRsvp(ctx, userID)
	})
	if err != nil {
		return mapRepoErr(err)
	}
	e.log.Info().Int64("user_id", userID).Int64("event_id", eventID).Msg("rsvp cancelled")

	bg := context.WithoutCancel(ctx)
	p, perr := e.promoteLocked(bg, eventID)
	release()

	e.record(bg, eventID, userID, stats.Cancelled)
	if perr != nil {
		e.log.Error().Err(perr).Int64("event_id", eventID).Msg("promotion after cancellation failed")
		return nil
	}
	e.announcePromotion(bg, p)
	return nil
}

// ArchiveEvent closes the event for good: the waiting list is emptied, the
// RSVP records stay as history and every attendee or queued user is told the
// event was cancelled.
func (e *Engine) ArchiveEvent(ctx context.Context, eventID int64) (model.Event, error) {
	release, err := e.locks.Acquire(ctx, eventID)
	if err != nil {
		return model.Event{}, err
	}
	defer release()

	var (
		ev        model.Event
		attendees []int64
		queued    []model.WaitingListEntry
	)
	err = e.repo.WithEventTx(ctx, eventID, func(tx repo.Tx) error {
		if tx.Event().Archived() {
			return ErrEventArchived
		}
		var err error
		if attendees, err = tx.AttendingUserIDs(ctx); err != nil {
			return err
		}
		if queued, err = tx.ClearQueue(ctx); err != nil {
			return err
		}
		if err := tx.Archive(ctx, time.Now()); err != nil {
			return err
		}
		ev = tx.Event()
		return nil
	})
	if err != nil {
		return model.Event{}, mapRepoErr(err)
	}
	release()

	e.log.Info().
		Int64("event_id", eventID).
		Int("attendees", len(attendees)).
		Int("dropped_from_queue", len(queued)).
		Msg("event archived")

	bg := context.WithoutCancel(ctx)
	payload := payloadFor(ev)
	for _, userID := range attendees {
		e.notify(bg, userID, eventID, KindEventCancelled, payload)
	}
	for _, entry := range queued {
		e.notify(bg, entry.UserID, eventID, KindEventCancelled, payload)
	}
	return ev, nil
}

// DeleteEvent removes the event together with its RSVPs and waiting list.
func (e *Engine) DeleteEvent(ctx context.Context, eventID int64) error {
	release, err := e.locks.Acquire(ctx, eventID)
	if err != nil {
		return err
	}
	defer release()

	if err := e.repo.DeleteEvent(ctx, eventID); err != nil {
		return mapRepoErr(err)
	}
	e.log.Info().Int64("event_id", eventID).Msg("event deleted")
	return nil
}

func (e *Engine) record(ctx context.Context, eventID, userID int64, outcome stats.Outcome) {
	ev := stats.Event{EventID: eventID, UserID: userID, Outcome: outcome, At: time.Now()}
	if err := e.stats.Record(ctx, ev); err != nil {
		e.log.Warn().Err(err).Int64("event_id", eventID).Str("outcome", string(outcome)).Msg("failed to record stats")
	}
}

// notify reports whether the dispatcher accepted the message.
func (e *Engine) notify(ctx context.Context, userID, eventID int64, kind NotificationKind, payload Payload) bool {
	if err := e.dispatcher.Notify(ctx, userID, eventID, kind, payload); err != nil {
		e.log.Error().
			Err(fmt.Errorf("%w: %v", ErrDispatch, err)).
			Int64("user_id", userID).
			Int64("event_id", eventID).
			Str("kind", string(kind)).
			Msg("failed to dispatch notification")
		return false
	}
	return true
}

func mapRepoErr(err error) error {
	switch {
	case errors.Is(err, repo.ErrEventNotFound):
		return ErrEventNotFound
	case errors.Is(err, repo.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, repo.ErrRsvpNotFound):
		return ErrRsvpNotFound
	case errors.Is(err, repo.ErrEntryNotFound):
		return ErrNotWaitlisted
	}
	return err
}

func payloadFor(ev model.Event) Payload {
	return Payload{EventTitle: ev.Title, StartDate: ev.StartDate, Location: ev.Location}
}
