package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"eventWaitlist/internal/dto"
	"eventWaitlist/internal/model"
	"eventWaitlist/internal/waitlist"
)

type published struct {
	id   string
	body []byte
}

type fakePublisher struct {
	got []published
	err error
}

func (p *fakePublisher) Publish(_ context.Context, messageID string, body []byte) error {
	if p.err != nil {
		return p.err
	}
	p.got = append(p.got, published{id: messageID, body: body})
	return nil
}

func TestRabbitDispatcherPublishes(t *testing.T) {
	log := zerolog.Nop()
	pub := &fakePublisher{}
	d := NewRabbitDispatcher(pub, &log)
	fixed := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return fixed }

	payload := waitlist.Payload{EventTitle: "Go meetup", Location: "Main hall", Status: model.StatusAttending, GuestCount: 1}
	if err := d.Notify(context.Background(), 7, 3, waitlist.KindSpotAvailable, payload); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if err := d.Notify(context.Background(), 8, 3, waitlist.KindWaitlisted, waitlist.Payload{Position: 2}); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if len(pub.got) != 2 {
		t.Fatalf("published: got %d, want 2", len(pub.got))
	}
	if pub.got[0].id == pub.got[1].id {
		t.Errorf("message ids should differ")
	}
	if _, err := uuid.Parse(pub.got[0].id); err != nil {
		t.Errorf("message id %q is not a uuid: %v", pub.got[0].id, err)
	}

	var msg dto.NotificationMessage
	if err := json.Unmarshal(pub.got[0].body, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.UserID != 7 || msg.EventID != 3 || msg.Kind != "SPOT_AVAILABLE" || msg.Status != "Attending" {
		t.Errorf("message: %+v", msg)
	}
	if !msg.SentAt.Equal(fixed) {
		t.Errorf("sent_at: got %v", msg.SentAt)
	}
}

func TestRabbitDispatcherPublishError(t *testing.T) {
	log := zerolog.Nop()
	boom := errors.New("channel closed")
	d := NewRabbitDispatcher(&fakePublisher{err: boom}, &log)

	if err := d.Notify(context.Background(), 1, 1, waitlist.KindWaitlisted, waitlist.Payload{}); !errors.Is(err, boom) {
		t.Errorf("got %v, want %v", err, boom)
	}
}

func TestInline(t *testing.T) {
	var got dto.NotificationMessage
	d := Inline{Handle: func(_ context.Context, msg dto.NotificationMessage) error {
		got = msg
		return nil
	}}

	if err := d.Notify(context.Background(), 5, 9, waitlist.KindWaitlisted, waitlist.Payload{Position: 3}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got.UserID != 5 || got.EventID != 9 || got.Position != 3 || got.Kind != "WAITLISTED" {
		t.Errorf("message: %+v", got)
	}
}
