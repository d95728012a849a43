// Package notify turns waitlist notifications into broker messages.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"eventWaitlist/internal/dto"
	"eventWaitlist/internal/rabbit"
	"eventWaitlist/internal/waitlist"
)

// RabbitDispatcher publishes every notification as one JSON message with a
// fresh MessageId.
type RabbitDispatcher struct {
	pub rabbit.Publisher
	log *zerolog.Logger
	now func() time.Time
}

func NewRabbitDispatcher(pub rabbit.Publisher, log *zerolog.Logger) *RabbitDispatcher {
	return &RabbitDispatcher{pub: pub, log: log, now: time.Now}
}

func (d *RabbitDispatcher) Notify(ctx context.Context, userID, eventID int64, kind waitlist.NotificationKind, payload waitlist.Payload) error {
	msg := Message(userID, eventID, kind, payload, d.now())

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	id := uuid.NewString()
	if err := d.pub.Publish(ctx, id, body); err != nil {
		return err
	}

	d.log.Debug().
		Str("message_id", id).
		Int64("user_id", userID).
		Int64("event_id", eventID).
		Str("kind", string(kind)).
		Msg("notification published")
	return nil
}

// Inline hands messages straight to a handler. Used when the broker is
// disabled.
type Inline struct {
	Handle func(ctx context.Context, msg dto.NotificationMessage) error
}

func (d Inline) Notify(ctx context.Context, userID, eventID int64, kind waitlist.NotificationKind, payload waitlist.Payload) error {
	return d.Handle(ctx, Message(userID, eventID, kind, payload, time.Now()))
}

func Message(userID, eventID int64, kind waitlist.NotificationKind, p waitlist.Payload, at time.Time) dto.NotificationMessage {
	return dto.NotificationMessage{
		UserID:     userID,
		EventID:    eventID,
		Kind:       string(kind),
		EventTitle: p.EventTitle,
		StartDate:  p.StartDate,
		Location:   p.Location,
		Status:     string(p.Status),
		GuestCount: p.GuestCount,
		Position:   p.Position,
		SentAt:     at.UTC(),
	}
}
