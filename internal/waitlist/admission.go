package waitlist

import (
	"context"
	"errors"

	"eventWaitlist/internal/model"
	"eventWaitlist/internal/repo"
	"eventWaitlist/internal/stats"
)

type Outcome string

const (
	OutcomeConfirmed  Outcome = "confirmed"
	OutcomeWaitlisted Outcome = "waitlisted"
	OutcomeUpdated    Outcome = "updated"
	OutcomeFailed     Outcome = "failed"
)

// Admission is the result of an RSVP request. Rsvp is set for Confirmed and
// Updated, Entry for Waitlisted (and for Failed with ErrAlreadyWaitlisted).
type Admission struct {
	Outcome Outcome
	Event   model.Event
	Rsvp    *model.Rsvp
	Entry   *model.WaitingListEntry
	Reason  error
}

func failed(err error) (Admission, error) {
	return Admission{Outcome: OutcomeFailed, Reason: err}, err
}

// RequestRsvp admits, updates or enqueues the user. It does not notify;
// callers pass the result to AnnounceAdmission. Stats and promotion
// notifications go out after the event lock is released.
func (e *Engine) RequestRsvp(ctx context.Context, userID, eventID int64, status model.RsvpStatus, guestCount int) (Admission, error) {
	if !status.Valid() {
		return failed(ErrInvalidStatus)
	}
	if guestCount < 1 {
		guestCount = 1
	}

	if _, err := e.repo.GetUserByID(ctx, userID); err != nil {
		return failed(mapRepoErr(err))
	}

	release, err := e.locks.Acquire(ctx, eventID)
	if err != nil {
		return failed(err)
	}
	defer release()

	var (
		adm   Admission
		freed bool
	)
	err = e.repo.WithEventTx(ctx, eventID, func(tx repo.Tx) error {
		var aerr error
		adm, freed, aerr = admit(ctx, tx, userID, status, guestCount)
		return aerr
	})
	if err != nil {
		err = mapRepoErr(err)
		if errors.Is(err, ErrAlreadyWaitlisted) {
			e.log.Info().Int64("user_id", userID).Int64("event_id", eventID).Msg("user already on waiting list")
			a, _ := failed(err)
			a.Entry = adm.Entry
			return a, err
		}
		e.log.Error().Err(err).Int64("user_id", userID).Int64("event_id", eventID).Msg("rsvp request failed")
		return failed(err)
	}

	bg := context.WithoutCancel(ctx)
	var (
		p    promotion
		perr error
	)
	if freed {
		p, perr = e.promoteLocked(bg, eventID)
	}
	release()

	e.logAdmission(bg, userID, eventID, adm)
	if perr != nil {
		e.log.Error().Err(perr).Int64("event_id", eventID).Msg("promotion after status change failed")
	} else {
		e.announcePromotion(bg, p)
	}
	return adm, nil
}

// admit runs inside the event transaction. freed reports that an Attending
// record stopped being Attending.
func admit(ctx context.Context, tx repo.Tx, userID int64, status model.RsvpStatus, guestCount int) (Admission, bool, error) {
	ev := tx.Event()
	if ev.Archived() {
		return Admission{}, false, ErrEventArchived
	}

	existing, err := tx.GetRsvp(ctx, userID)
	if err != nil && !errors.Is(err, repo.ErrRsvpNotFound) {
		return Admission{}, false, err
	}
	if existing != nil {
		return updateExisting(ctx, tx, existing, status, guestCount)
	}

	entry, err := findEntry(ctx, tx, userID)
	if err != nil {
		return Admission{}, false, err
	}

	if status != model.StatusAttending {
		if entry != nil {
			if _, err := dequeue(ctx, tx, userID); err != nil {
				return Admission{}, false, err
			}
		}
		rsvp, err := createRsvp(ctx, tx, userID, status, guestCount)
		if err != nil {
			return Admission{}, false, err
		}
		return Admission{Outcome: OutcomeConfirmed, Event: ev, Rsvp: rsvp}, false, nil
	}

	confirmed, err := tx.CountAttending(ctx)
	if err != nil {
		return Admission{}, false, err
	}
	if !hasRoom(ev.MaxAttendees, confirmed) {
		if entry != nil {
			return Admission{Event: ev, Entry: entry}, false, ErrAlreadyWaitlisted
		}
		entry, err := enqueue(ctx, tx, userID)
		if err != nil {
			return Admission{}, false, err
		}
		return Admission{Outcome: OutcomeWaitlisted, Event: ev, Entry: entry}, false, nil
	}

	if entry != nil {
		if _, err := dequeue(ctx, tx, userID); err != nil {
			return Admission{}, false, err
		}
	}
	rsvp, err := createRsvp(ctx, tx, userID, status, guestCount)
	if err != nil {
		return Admission{}, false, err
	}
	if err := assertCapacity(ctx, tx); err != nil {
		return Admission{}, false, err
	}
	return Admission{Outcome: OutcomeConfirmed, Event: ev, Rsvp: rsvp}, false, nil
}

// updateExisting never displaces a current attendee. Moving into Attending
// on a full event gives up the record and joins the queue instead.
func updateExisting(ctx context.Context, tx repo.Tx, rsvp *model.Rsvp, status model.RsvpStatus, guestCount int) (Admission, bool, error) {
	ev := tx.Event()
	wasAttending := rsvp.Status == model.StatusAttending

	if status == model.StatusAttending && !wasAttending {
		confirmed, err := tx.CountAttending(ctx)
		if err != nil {
			return Admission{}, false, err
		}
		if !hasRoom(ev.MaxAttendees, confirmed) {
			if err := tx.DeleteRsvp(ctx, rsvp.UserID); err != nil {
				return Admission{}, false, err
			}
			entry, err := enqueue(ctx, tx, rsvp.UserID)
			if err != nil {
				return Admission{}, false, err
			}
			return Admission{Outcome: OutcomeWaitlisted, Event: ev, Entry: entry}, false, nil
		}
	}

	rsvp.Status = status
	rsvp.GuestCount = guestCount
	if err := tx.UpdateRsvp(ctx, rsvp); err != nil {
		return Admission{}, false, err
	}
	if status == model.StatusAttending && !wasAttending {
		if err := assertCapacity(ctx, tx); err != nil {
			return Admission{}, false, err
		}
	}

	freed := wasAttending && status != model.StatusAttending
	return Admission{Outcome: OutcomeUpdated, Event: ev, Rsvp: rsvp}, freed, nil
}

func createRsvp(ctx context.Context, tx repo.Tx, userID int64, status model.RsvpStatus, guestCount int) (*model.Rsvp, error) {
	rsvp := &model.Rsvp{
		UserID:     userID,
		Status:     status,
		GuestCount: guestCount,
	}
	if _, err := tx.CreateRsvp(ctx, rsvp); err != nil {
		return nil, err
	}
	return rsvp, nil
}

func (e *Engine) logAdmission(ctx context.Context, userID, eventID int64, adm Admission) {
	switch adm.Outcome {
	case OutcomeConfirmed:
		e.log.Info().Int64("user_id", userID).Int64("event_id", eventID).
			Str("status", string(adm.Rsvp.Status)).Msg("rsvp confirmed")
		e.record(ctx, eventID, userID, stats.Confirmed)
	case OutcomeUpdated:
		e.log.Info().Int64("user_id", userID).Int64("event_id", eventID).
			Str("status", string(adm.Rsvp.Status)).Msg("rsvp updated")
		e.record(ctx, eventID, userID, stats.Updated)
	case OutcomeWaitlisted:
		e.log.Info().Int64("user_id", userID).Int64("event_id", eventID).
			Int("priority", adm.Entry.Priority).Msg("user added to waiting list")
		e.record(ctx, eventID, userID, stats.Waitlisted)
	}
}

// AnnounceAdmission sends RSVP_CONFIRMATION for Confirmed and WAITLISTED for
// Waitlisted results. A delivered WAITLISTED message marks the entry notified.
func (e *Engine) AnnounceAdmission(ctx context.Context, userID int64, adm Admission) {
	ctx = context.WithoutCancel(ctx)
	payload := payloadFor(adm.Event)
	switch adm.Outcome {
	case OutcomeConfirmed:
		payload.Status = adm.Rsvp.Status
		payload.GuestCount = adm.Rsvp.GuestCount
		e.notify(ctx, userID, adm.Event.ID, KindConfirmed, payload)
	case OutcomeWaitlisted:
		payload.Position = adm.Entry.Priority
		if !e.notify(ctx, userID, adm.Event.ID, KindWaitlisted, payload) {
			return
		}
		if err := e.repo.MarkNotified(ctx, userID, adm.Event.ID); err != nil {
			e.log.Warn().Err(err).Int64("user_id", userID).Int64("event_id", adm.Event.ID).Msg("failed to mark entry notified")
		}
	}
}
