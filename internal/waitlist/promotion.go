package waitlist

import (
	"context"
	"errors"
	"fmt"

	"eventWaitlist/internal/model"
	"eventWaitlist/internal/repo"
	"eventWaitlist/internal/stats"
)

// PromotedGuestCount is the guest count given to users promoted from the
// waiting list. The originally requested count is not kept on the entry.
const PromotedGuestCount = 1

// Promote fills free seats from the head of the waiting list. The whole batch
// commits or rolls back together; a second call without intervening changes
// promotes nobody.
func (e *Engine) Promote(ctx context.Context, eventID int64) ([]model.Rsvp, error) {
	release, err := e.locks.Acquire(ctx, eventID)
	if err != nil {
		return nil, err
	}
	defer release()

	p, err := e.promoteLocked(ctx, eventID)
	release()
	if err != nil {
		return nil, err
	}
	e.announcePromotion(context.WithoutCancel(ctx), p)
	return p.promoted, nil
}

// promotion is a committed batch waiting to be announced.
type promotion struct {
	event    model.Event
	promoted []model.Rsvp
}

// promoteLocked runs the batch under the caller's event lock. It has no side
// effects besides the transaction; announcePromotion sends them once the
// lock is released.
func (e *Engine) promoteLocked(ctx context.Context, eventID int64) (promotion, error) {
	var p promotion
	err := e.repo.WithEventTx(ctx, eventID, func(tx repo.Tx) error {
		p.event = tx.Event()
		p.promoted = p.promoted[:0]

		if p.event.Archived() {
			return nil
		}
		confirmed, err := tx.CountAttending(ctx)
		if err != nil {
			return err
		}
		available := p.event.MaxAttendees - confirmed
		if available <= 0 {
			return nil
		}

		head, err := tx.HeadOfQueue(ctx, available)
		if err != nil {
			return err
		}
		if len(head) == 0 {
			return nil
		}

		for _, entry := range head {
			rsvp, err := admitEntry(ctx, tx, entry)
			if err != nil {
				return fmt.Errorf("failed to promote user %d: %w", entry.UserID, err)
			}
			p.promoted = append(p.promoted, *rsvp)
		}
		if err := tx.Reindex(ctx); err != nil {
			return err
		}
		return assertCapacity(ctx, tx)
	})
	if err != nil {
		return promotion{}, mapRepoErr(err)
	}
	if len(p.promoted) == 0 {
		p.promoted = nil
		return p, nil
	}

	e.log.Info().Int64("event_id", eventID).Int("promoted", len(p.promoted)).Msg("promoted users from waiting list")
	return p, nil
}

func (e *Engine) announcePromotion(ctx context.Context, p promotion) {
	if len(p.promoted) == 0 {
		return
	}
	payload := payloadFor(p.event)
	payload.Status = model.StatusAttending
	payload.GuestCount = PromotedGuestCount
	for _, r := range p.promoted {
		e.record(ctx, p.event.ID, r.UserID, stats.Promoted)
		e.notify(ctx, r.UserID, p.event.ID, KindSpotAvailable, payload)
	}
}

// admitEntry turns a queue entry into an Attending record. A leftover
// non-attending record of the same user is upgraded instead of duplicated.
func admitEntry(ctx context.Context, tx repo.Tx, entry model.WaitingListEntry) (*model.Rsvp, error) {
	if err := tx.DeleteEntry(ctx, entry.UserID); err != nil {
		return nil, err
	}

	existing, err := tx.GetRsvp(ctx, entry.UserID)
	switch {
	case err == nil:
		existing.Status = model.StatusAttending
		existing.GuestCount = PromotedGuestCount
		if err := tx.UpdateRsvp(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	case errors.Is(err, repo.ErrRsvpNotFound):
		return createRsvp(ctx, tx, entry.UserID, model.StatusAttending, PromotedGuestCount)
	default:
		return nil, err
	}
}

// PromoteAll runs Promote for every event with a non-empty waiting list and
// returns how many users were promoted. Failures for one event do not stop
// the others.
func (e *Engine) PromoteAll(ctx context.Context) (int, error) {
	ids, err := e.repo.GetEventIDsWithWaitingList(ctx)
	if err != nil {
		return 0, err
	}

	var (
		total int
		errs  []error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		promoted, err := e.Promote(ctx, id)
		if err != nil {
			if errors.Is(err, ErrEventNotFound) {
				continue
			}
			e.log.Error().Err(err).Int64("event_id", id).Msg("promotion sweep failed for event")
			errs = append(errs, fmt.Errorf("event %d: %w", id, err))
			continue
		}
		total += len(promoted)
	}
	return total, errors.Join(errs...)
}
