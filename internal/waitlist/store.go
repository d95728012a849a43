package waitlist

import (
	"context"
	"errors"
	"time"

	"eventWaitlist/internal/model"
	"eventWaitlist/internal/repo"
	"eventWaitlist/internal/stats"
)

// NotWaitlisted is the position reported for users without an entry.
const NotWaitlisted = -1

// enqueue appends the user at max(priority)+1. Freed slots in the middle are
// never reused; the event row lock makes the max read and insert atomic.
func enqueue(ctx context.Context, tx repo.Tx, userID int64) (*model.WaitingListEntry, error) {
	existing, err := tx.GetEntry(ctx, userID)
	if err != nil && !errors.Is(err, repo.ErrEntryNotFound) {
		return nil, err
	}
	if existing != nil {
		return existing, ErrAlreadyWaitlisted
	}

	max, err := tx.MaxPriority(ctx)
	if err != nil {
		return nil, err
	}

	entry := &model.WaitingListEntry{
		UserID:   userID,
		Priority: max + 1,
		JoinedAt: time.Now().UTC(),
	}
	if _, err := tx.InsertEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// dequeue removes the user's entry and closes the gap behind it.
func dequeue(ctx context.Context, tx repo.Tx, userID int64) (*model.WaitingListEntry, error) {
	entry, err := tx.GetEntry(ctx, userID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if err := tx.DeleteEntry(ctx, userID); err != nil {
		return nil, mapRepoErr(err)
	}
	if err := tx.Reindex(ctx); err != nil {
		return nil, err
	}
	return entry, nil
}

func findEntry(ctx context.Context, tx repo.Tx, userID int64) (*model.WaitingListEntry, error) {
	entry, err := tx.GetEntry(ctx, userID)
	if errors.Is(err, repo.ErrEntryNotFound) {
		return nil, nil
	}
	return entry, err
}

// LeaveWaitingList takes the user out of the event's queue.
func (e *Engine) LeaveWaitingList(ctx context.Context, userID, eventID int64) error {
	release, err := e.locks.Acquire(ctx, eventID)
	if err != nil {
		return err
	}
	defer release()

	var removed *model.WaitingListEntry
	err = e.repo.WithEventTx(ctx, eventID, func(tx repo.Tx) error {
		var derr error
		removed, derr = dequeue(ctx, tx, userID)
		return derr
	})
	if err != nil {
		return mapRepoErr(err)
	}
	release()

	e.log.Info().
		Int64("user_id", userID).
		Int64("event_id", eventID).
		Int("priority", removed.Priority).
		Msg("user removed from waiting list")
	e.record(context.WithoutCancel(ctx), eventID, userID, stats.Left)
	return nil
}

// PositionOf returns the user's queue position or NotWaitlisted.
func (e *Engine) PositionOf(ctx context.Context, userID, eventID int64) (int, error) {
	entry, err := e.repo.GetWaitingListEntry(ctx, userID, eventID)
	if err != nil {
		if errors.Is(err, repo.ErrEntryNotFound) {
			return NotWaitlisted, nil
		}
		return NotWaitlisted, err
	}
	return entry.Priority, nil
}

// ListWaitingList returns the event's entries by ascending priority.
func (e *Engine) ListWaitingList(ctx context.Context, eventID int64) ([]model.WaitingListEntry, error) {
	return e.repo.GetWaitingList(ctx, eventID)
}
