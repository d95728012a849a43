package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"eventWaitlist/internal/model"
)

// Tx is a unit of work scoped to one locked event.
type Tx interface {
	Event() model.Event
	CountAttending(ctx context.Context) (int, error)

	GetRsvp(ctx context.Context, userID int64) (*model.Rsvp, error)
	CreateRsvp(ctx context.Context, rsvp *model.Rsvp) (int64, error)
	UpdateRsvp(ctx context.Context, rsvp *model.Rsvp) error
	DeleteRsvp(ctx context.Context, userID int64) error

	GetEntry(ctx context.Context, userID int64) (*model.WaitingListEntry, error)
	MaxPriority(ctx context.Context) (int, error)
	InsertEntry(ctx context.Context, e *model.WaitingListEntry) (int64, error)
	DeleteEntry(ctx context.Context, userID int64) error
	HeadOfQueue(ctx context.Context, limit int) ([]model.WaitingListEntry, error)
	// ClearQueue removes every entry and returns them in queue order.
	ClearQueue(ctx context.Context) ([]model.WaitingListEntry, error)
	AttendingUserIDs(ctx context.Context) ([]int64, error)
	// Archive stamps archived_at on the locked event.
	Archive(ctx context.Context, at time.Time) error
	// Reindex renumbers the remaining entries to 1..N keeping their order.
	Reindex(ctx context.Context) error
}

type eventTx struct {
	tx    *sql.Tx
	event model.Event
}

func (r *repository) WithEventTx(ctx context.Context, eventID int64, fn func(tx Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var e model.Event
	row := tx.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`+r.dialect.forUpdate, eventID)
	if err := scanEvent(row, &e); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEventNotFound
		}
		return fmt.Errorf("failed to lock event: %w", err)
	}

	if err := fn(&eventTx{tx: tx, event: e}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *eventTx) Event() model.Event {
	return t.event
}

func (t *eventTx) CountAttending(ctx context.Context) (int, error) {
	return countAttending(ctx, t.tx, t.event.ID)
}

func (t *eventTx) GetRsvp(ctx context.Context, userID int64) (*model.Rsvp, error) {
	return getRsvp(ctx, t.tx, userID, t.event.ID)
}

func (t *eventTx) CreateRsvp(ctx context.Context, rsvp *model.Rsvp) (int64, error) {
	rsvp.EventID = t.event.ID
	if rsvp.RsvpDate.IsZero() {
		rsvp.RsvpDate = time.Now().UTC()
	}

	var id int64
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO rsvps (user_id, event_id, status, guest_count, rsvp_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, rsvp.UserID, rsvp.EventID, string(rsvp.Status), rsvp.GuestCount, rsvp.RsvpDate).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create rsvp: %w", err)
	}
	rsvp.ID = id
	return id, nil
}

func (t *eventTx) UpdateRsvp(ctx context.Context, rsvp *model.Rsvp) error {
	rsvp.RsvpDate = time.Now().UTC()
	res, err := t.tx.ExecContext(ctx, `
		UPDATE rsvps
		SET status = $1, guest_count = $2, rsvp_date = $3
		WHERE user_id = $4 AND event_id = $5
	`, string(rsvp.Status), rsvp.GuestCount, rsvp.RsvpDate, rsvp.UserID, t.event.ID)
	if err != nil {
		return fmt.Errorf("failed to update rsvp: %w", err)
	}
	return expectOne(res, ErrRsvpNotFound)
}

func (t *eventTx) DeleteRsvp(ctx context.Context, userID int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM rsvps WHERE user_id = $1 AND event_id = $2`, userID, t.event.ID)
	if err != nil {
		return fmt.Errorf("failed to delete rsvp: %w", err)
	}
	return expectOne(res, ErrRsvpNotFound)
}

func (t *eventTx) GetEntry(ctx context.Context, userID int64) (*model.WaitingListEntry, error) {
	return getEntry(ctx, t.tx, userID, t.event.ID)
}

func (t *eventTx) MaxPriority(ctx context.Context) (int, error) {
	var max int
	err := t.tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(priority), 0)
		FROM waiting_list
		WHERE event_id = $1
	`, t.event.ID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to read max priority: %w", err)
	}
	return max, nil
}

func (t *eventTx) InsertEntry(ctx context.Context, e *model.WaitingListEntry) (int64, error) {
	e.EventID = t.event.ID
	if e.JoinedAt.IsZero() {
		e.JoinedAt = time.Now().UTC()
	}

	var id int64
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO waiting_list (user_id, event_id, priority, joined_at, is_notified)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, e.UserID, e.EventID, e.Priority, e.JoinedAt, e.Notified).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert waiting list entry: %w", err)
	}
	e.ID = id
	return id, nil
}

func (t *eventTx) DeleteEntry(ctx context.Context, userID int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM waiting_list WHERE user_id = $1 AND event_id = $2`, userID, t.event.ID)
	if err != nil {
		return fmt.Errorf("failed to delete waiting list entry: %w", err)
	}
	return expectOne(res, ErrEntryNotFound)
}

func (t *eventTx) HeadOfQueue(ctx context.Context, limit int) ([]model.WaitingListEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	return listEntries(ctx, t.tx, `
		SELECT `+entryColumns+`
		FROM waiting_list
		WHERE event_id = $1
		ORDER BY priority ASC
		LIMIT $2
	`, t.event.ID, limit)
}

func (t *eventTx) ClearQueue(ctx context.Context) ([]model.WaitingListEntry, error) {
	entries, err := listEntries(ctx, t.tx, `
		SELECT `+entryColumns+`
		FROM waiting_list
		WHERE event_id = $1
		ORDER BY priority ASC
	`, t.event.ID)
	if err != nil {
		return nil, err
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM waiting_list WHERE event_id = $1`, t.event.ID); err != nil {
		return nil, fmt.Errorf("failed to clear waiting list: %w", err)
	}
	return entries, nil
}

func (t *eventTx) AttendingUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT user_id
		FROM rsvps
		WHERE event_id = $1 AND status = $2
		ORDER BY rsvp_date ASC, id ASC
	`, t.event.ID, string(model.StatusAttending))
	if err != nil {
		return nil, fmt.Errorf("failed to get attendees: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan attendee: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attendees: %w", err)
	}
	return ids, nil
}

func (t *eventTx) Archive(ctx context.Context, at time.Time) error {
	at = at.UTC()
	res, err := t.tx.ExecContext(ctx, `
		UPDATE events
		SET archived_at = $1, updated_at = $1
		WHERE id = $2
	`, at, t.event.ID)
	if err != nil {
		return fmt.Errorf("failed to archive event: %w", err)
	}
	if err := expectOne(res, ErrEventNotFound); err != nil {
		return err
	}
	t.event.ArchivedAt = &at
	t.event.UpdatedAt = at
	return nil
}

type renumber struct {
	id       int64
	priority int
}

// Reindex moves changed rows through negative priorities first so the
// (event_id, priority) unique index never sees a transient duplicate.
func (t *eventTx) Reindex(ctx context.Context) error {
	moves, err := t.pendingRenumbers(ctx)
	if err != nil {
		return err
	}
	if len(moves) == 0 {
		return nil
	}

	for _, m := range moves {
		if _, err := t.tx.ExecContext(ctx, `UPDATE waiting_list SET priority = $1 WHERE id = $2`, -m.priority, m.id); err != nil {
			return fmt.Errorf("failed to stage priority for entry %d: %w", m.id, err)
		}
	}
	if _, err := t.tx.ExecContext(ctx, `
		UPDATE waiting_list
		SET priority = -priority
		WHERE event_id = $1 AND priority < 0
	`, t.event.ID); err != nil {
		return fmt.Errorf("failed to apply priorities: %w", err)
	}
	return nil
}

func (t *eventTx) pendingRenumbers(ctx context.Context) ([]renumber, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, priority
		FROM waiting_list
		WHERE event_id = $1
		ORDER BY priority ASC
	`, t.event.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read priorities: %w", err)
	}
	defer rows.Close()

	var moves []renumber
	want := 0
	for rows.Next() {
		var (
			id       int64
			priority int
		)
		if err := rows.Scan(&id, &priority); err != nil {
			return nil, fmt.Errorf("failed to scan priority: %w", err)
		}
		want++
		if priority != want {
			moves = append(moves, renumber{id: id, priority: want})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate priorities: %w", err)
	}
	return moves, nil
}

func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
