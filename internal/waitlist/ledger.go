package waitlist

import (
	"context"
	"fmt"

	"eventWaitlist/internal/repo"
)

// ConfirmedCount returns the number of Attending records for the event.
// Guest counts are not seats.
func (e *Engine) ConfirmedCount(ctx context.Context, eventID int64) (int, error) {
	if _, err := e.repo.GetEventByID(ctx, eventID); err != nil {
		return 0, mapRepoErr(err)
	}
	return e.repo.CountAttending(ctx, eventID)
}

func hasRoom(maxAttendees, confirmed int) bool {
	return confirmed < maxAttendees
}

// assertCapacity fails the transaction if it would overbook the event.
func assertCapacity(ctx context.Context, tx repo.Tx) error {
	ev := tx.Event()
	count, err := tx.CountAttending(ctx)
	if err != nil {
		return err
	}
	if count > ev.MaxAttendees {
		return fmt.Errorf("%w: event %d has %d confirmed of %d", ErrCapacityInvariant, ev.ID, count, ev.MaxAttendees)
	}
	return nil
}
