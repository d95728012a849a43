package validator

import (
	"context"
	"errors"
	"testing"
	"time"

	"eventWaitlist/internal/dto"
)

type rsvpForm struct {
	Status string `validate:"required,rsvpstatus"`
	Guests int    `validate:"gte=0,lte=50"`
}

type eventForm struct {
	Title string    `validate:"required,max=10"`
	Start time.Time `validate:"required,future"`
	Seats int       `validate:"positive"`
}

func TestValidate(t *testing.T) {
	ctx := context.Background()
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name  string
		in    any
		field string
		msg   string
	}{
		{"valid rsvp", rsvpForm{Status: "Maybe"}, "", ""},
		{"unknown status", rsvpForm{Status: "Sure"}, "Status", ErrInvalidFormat},
		{"missing status", rsvpForm{}, "Status", ErrFieldRequired},
		{"too many guests", rsvpForm{Status: "Attending", Guests: 51}, "Guests", ErrFieldExceedsMaxVal},
		{"valid event", eventForm{Title: "Meetup", Start: future, Seats: 3}, "", ""},
		{"long title", eventForm{Title: "A very long title", Start: future, Seats: 3}, "Title", ErrFieldExceedsMaxLen},
		{"past start", eventForm{Title: "Meetup", Start: time.Now().Add(-time.Hour), Seats: 3}, "Start", "Date must be in the future"},
		{"no seats", eventForm{Title: "Meetup", Start: future}, "Seats", "Value must be positive"},
		{"event request without seats", dto.CreateEventRequest{Title: "Meetup", StartDate: future}, "MaxAttendees", "Value must be positive"},
		{"event request", dto.CreateEventRequest{Title: "Meetup", StartDate: future, MaxAttendees: 20}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(ctx, tt.in)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("got %v, want *FieldError", err)
			}
			if fe.Field != tt.field || fe.Msg != tt.msg {
				t.Errorf("got %s/%s, want %s/%s", fe.Field, fe.Msg, tt.field, tt.msg)
			}
		})
	}
}
