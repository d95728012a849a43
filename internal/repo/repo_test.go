package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"eventWaitlist/internal/model"
)

func newTestRepo(t *testing.T) Repository {
	t.Helper()
	log := zerolog.Nop()
	r, err := NewSQLiteRepository(":memory:", &log)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	if err := r.MigrateUp(context.Background()); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	return r
}

func seed(t *testing.T, r Repository, max, users int) (int64, []int64) {
	t.Helper()
	ctx := context.Background()

	ev := &model.Event{Title: "Launch", StartDate: time.Now().Add(time.Hour).UTC(), MaxAttendees: max}
	eventID, err := r.CreateEvent(ctx, ev)
	if err != nil {
		t.Fatalf("create event: %v", err)
	}

	ids := make([]int64, 0, users)
	for i := 0; i < users; i++ {
		u := &model.User{Email: string(rune('a'+i)) + "@example.com", FirstName: "User"}
		id, err := r.CreateUser(ctx, u)
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		ids = append(ids, id)
	}
	return eventID, ids
}

func enqueueAll(t *testing.T, r Repository, eventID int64, users []int64) {
	t.Helper()
	ctx := context.Background()
	err := r.WithEventTx(ctx, eventID, func(tx Tx) error {
		for _, u := range users {
			max, err := tx.MaxPriority(ctx)
			if err != nil {
				return err
			}
			if _, err := tx.InsertEntry(ctx, &model.WaitingListEntry{UserID: u, Priority: max + 1}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
}

func priorities(t *testing.T, r Repository, eventID int64) []int64 {
	t.Helper()
	entries, err := r.GetWaitingList(context.Background(), eventID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	users := make([]int64, 0, len(entries))
	for i, e := range entries {
		if e.Priority != i+1 {
			t.Fatalf("entry %d has priority %d", i, e.Priority)
		}
		users = append(users, e.UserID)
	}
	return users
}

func TestEventRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	start := time.Date(2027, 3, 14, 19, 0, 0, 0, time.UTC)

	id, err := r.CreateEvent(ctx, &model.Event{Title: "Pi night", Location: "Lab", StartDate: start, MaxAttendees: 3})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := r.GetEventByID(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Pi night" || got.MaxAttendees != 3 || !got.StartDate.Equal(start) {
		t.Errorf("event: %+v", got)
	}
	if got.Archived() {
		t.Errorf("new event is archived")
	}

	if _, err := r.GetEventByID(ctx, id+1); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("missing event: got %v", err)
	}
	if _, err := r.GetUserByID(ctx, 12345); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("missing user: got %v", err)
	}

	all, err := r.GetAllEvents(ctx)
	if err != nil || len(all) != 1 {
		t.Errorf("all events: %v %v", all, err)
	}
}

func TestRsvpLifecycle(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	ev, users := seed(t, r, 2, 2)

	err := r.WithEventTx(ctx, ev, func(tx Tx) error {
		if _, err := tx.CreateRsvp(ctx, &model.Rsvp{UserID: users[0], Status: model.StatusAttending, GuestCount: 1}); err != nil {
			return err
		}
		_, err := tx.CreateRsvp(ctx, &model.Rsvp{UserID: users[1], Status: model.StatusMaybe, GuestCount: 3})
		return err
	})
	if err != nil {
		t.Fatalf("create rsvps: %v", err)
	}

	if n, _ := r.CountAttending(ctx, ev); n != 1 {
		t.Errorf("attending: got %d, want 1", n)
	}

	err = r.WithEventTx(ctx, ev, func(tx Tx) error {
		rsvp, err := tx.GetRsvp(ctx, users[1])
		if err != nil {
			return err
		}
		rsvp.Status = model.StatusAttending
		return tx.UpdateRsvp(ctx, rsvp)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if n, _ := r.CountAttending(ctx, ev); n != 2 {
		t.Errorf("attending after update: got %d, want 2", n)
	}

	err = r.WithEventTx(ctx, ev, func(tx Tx) error { return tx.DeleteRsvp(ctx, 999) })
	if !errors.Is(err, ErrRsvpNotFound) {
		t.Errorf("delete missing: got %v", err)
	}

	rsvps, err := r.GetRsvpsByEventID(ctx, ev)
	if err != nil || len(rsvps) != 2 {
		t.Errorf("rsvps: %v %v", rsvps, err)
	}
}

func TestWithEventTxRollsBack(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	ev, users := seed(t, r, 1, 1)
	boom := errors.New("boom")

	err := r.WithEventTx(ctx, ev, func(tx Tx) error {
		if _, err := tx.CreateRsvp(ctx, &model.Rsvp{UserID: users[0], Status: model.StatusAttending, GuestCount: 1}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want boom", err)
	}
	if _, err := r.GetRsvp(ctx, users[0], ev); !errors.Is(err, ErrRsvpNotFound) {
		t.Errorf("rsvp survived rollback: %v", err)
	}

	if err := r.WithEventTx(ctx, ev+10, func(Tx) error { return nil }); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("missing event: got %v", err)
	}
}

func TestReindexKeepsOrder(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	ev, users := seed(t, r, 1, 5)
	enqueueAll(t, r, ev, users)

	err := r.WithEventTx(ctx, ev, func(tx Tx) error {
		if err := tx.DeleteEntry(ctx, users[0]); err != nil {
			return err
		}
		if err := tx.DeleteEntry(ctx, users[2]); err != nil {
			return err
		}
		return tx.Reindex(ctx)
	})
	if err != nil {
		t.Fatalf("reindex: %v", err)
	}

	got := priorities(t, r, ev)
	want := []int64{users[1], users[3], users[4]}
	if len(got) != len(want) {
		t.Fatalf("queue: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: got user %d, want %d", i+1, got[i], want[i])
		}
	}

	err = r.WithEventTx(ctx, ev, func(tx Tx) error {
		head, err := tx.HeadOfQueue(ctx, 2)
		if err != nil {
			return err
		}
		if len(head) != 2 || head[0].UserID != users[1] || head[1].UserID != users[3] {
			t.Errorf("head: %+v", head)
		}
		if none, _ := tx.HeadOfQueue(ctx, 0); none != nil {
			t.Errorf("head with zero limit: %+v", none)
		}
		return tx.Reindex(ctx)
	})
	if err != nil {
		t.Fatalf("noop reindex: %v", err)
	}
}

func TestUniquePriorityPerEvent(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	ev, users := seed(t, r, 1, 2)
	enqueueAll(t, r, ev, users[:1])

	err := r.WithEventTx(ctx, ev, func(tx Tx) error {
		_, err := tx.InsertEntry(ctx, &model.WaitingListEntry{UserID: users[1], Priority: 1})
		return err
	})
	if err == nil {
		t.Fatalf("duplicate priority accepted")
	}
	if got := priorities(t, r, ev); len(got) != 1 {
		t.Errorf("queue: %v", got)
	}
}

func TestMarkNotifiedAndWaitingEvents(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	ev, users := seed(t, r, 1, 2)
	enqueueAll(t, r, ev, users)

	if err := r.MarkNotified(ctx, users[1], ev); err != nil {
		t.Fatalf("mark: %v", err)
	}
	e, err := r.GetWaitingListEntry(ctx, users[1], ev)
	if err != nil || !e.Notified {
		t.Errorf("entry: %+v %v", e, err)
	}
	if err := r.MarkNotified(ctx, 999, ev); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("mark missing: got %v", err)
	}

	ids, err := r.GetEventIDsWithWaitingList(ctx)
	if err != nil || len(ids) != 1 || ids[0] != ev {
		t.Errorf("waiting events: %v %v", ids, err)
	}
	if n, _ := r.CountWaiting(ctx, ev); n != 2 {
		t.Errorf("waiting: got %d", n)
	}
}

func TestDeleteEventCascades(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	ev, users := seed(t, r, 1, 2)

	err := r.WithEventTx(ctx, ev, func(tx Tx) error {
		_, err := tx.CreateRsvp(ctx, &model.Rsvp{UserID: users[0], Status: model.StatusAttending, GuestCount: 1})
		return err
	})
	if err != nil {
		t.Fatalf("rsvp: %v", err)
	}
	enqueueAll(t, r, ev, users[1:])
	if _, err := r.CreateNotification(ctx, &model.Notification{UserID: users[1], EventID: ev, Type: "WAITLISTED", Title: "t"}); err != nil {
		t.Fatalf("notification: %v", err)
	}

	if err := r.DeleteEvent(ctx, ev); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := r.DeleteEvent(ctx, ev); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("second delete: got %v", err)
	}

	if n, _ := r.CountAttending(ctx, ev); n != 0 {
		t.Errorf("rsvps left: %d", n)
	}
	if n, _ := r.CountWaiting(ctx, ev); n != 0 {
		t.Errorf("entries left: %d", n)
	}
	if ns, _ := r.GetNotificationsByUserID(ctx, users[1]); len(ns) != 0 {
		t.Errorf("notifications left: %d", len(ns))
	}
}

func TestNotifications(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	ev, users := seed(t, r, 1, 1)

	for _, kind := range []string{"WAITLISTED", "SPOT_AVAILABLE"} {
		if _, err := r.CreateNotification(ctx, &model.Notification{UserID: users[0], EventID: ev, Type: kind, Title: kind}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	ns, err := r.GetNotificationsByUserID(ctx, users[0])
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ns) != 2 || ns[0].Type != "SPOT_AVAILABLE" || ns[0].IsRead {
		t.Errorf("notifications: %+v", ns)
	}
}

func TestMigrateDown(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	if err := r.MigrateDown(ctx); err != nil {
		t.Fatalf("down: %v", err)
	}
	if _, err := r.GetAllEvents(ctx); err == nil {
		t.Errorf("events table should be gone")
	}
	if err := r.MigrateUp(ctx); err != nil {
		t.Fatalf("up again: %v", err)
	}
}

func TestArchiveClearsQueue(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	ev, users := seed(t, r, 1, 3)

	err := r.WithEventTx(ctx, ev, func(tx Tx) error {
		_, err := tx.CreateRsvp(ctx, &model.Rsvp{UserID: users[0], Status: model.StatusAttending, GuestCount: 1})
		return err
	})
	if err != nil {
		t.Fatalf("rsvp: %v", err)
	}
	enqueueAll(t, r, ev, users[1:])

	at := time.Date(2027, 1, 2, 3, 4, 5, 0, time.UTC)
	err = r.WithEventTx(ctx, ev, func(tx Tx) error {
		attendees, err := tx.AttendingUserIDs(ctx)
		if err != nil {
			return err
		}
		if len(attendees) != 1 || attendees[0] != users[0] {
			t.Errorf("attendees: %v", attendees)
		}
		cleared, err := tx.ClearQueue(ctx)
		if err != nil {
			return err
		}
		if len(cleared) != 2 || cleared[0].UserID != users[1] || cleared[1].UserID != users[2] {
			t.Errorf("cleared: %+v", cleared)
		}
		if err := tx.Archive(ctx, at); err != nil {
			return err
		}
		if !tx.Event().Archived() {
			t.Errorf("tx event not archived")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("archive: %v", err)
	}

	got, err := r.GetEventByID(ctx, ev)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ArchivedAt == nil || !got.ArchivedAt.Equal(at) {
		t.Errorf("archived_at: %v", got.ArchivedAt)
	}
	if n, _ := r.CountWaiting(ctx, ev); n != 0 {
		t.Errorf("waiting after archive: %d", n)
	}
	if ids, _ := r.GetEventIDsWithWaitingList(ctx); len(ids) != 0 {
		t.Errorf("archived event still has a queue: %v", ids)
	}
}
