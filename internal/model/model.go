package model

import "time"

type RsvpStatus string

const (
	StatusAttending    RsvpStatus = "Attending"
	StatusMaybe        RsvpStatus = "Maybe"
	StatusNotAttending RsvpStatus = "NotAttending"
)

func (s RsvpStatus) Valid() bool {
	switch s {
	case StatusAttending, StatusMaybe, StatusNotAttending:
		return true
	}
	return false
}

type User struct {
	ID        int64     `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	FirstName string    `db:"first_name" json:"first_name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Event struct {
	ID           int64      `db:"id" json:"id"`
	Title        string     `db:"title" json:"title"`
	Description  string     `db:"description,omitempty" json:"description,omitempty"`
	Location     string     `db:"location,omitempty" json:"location,omitempty"`
	StartDate    time.Time  `db:"start_date" json:"start_date"`
	MaxAttendees int        `db:"max_attendees" json:"max_attendees"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	// ArchivedAt is set once the event is closed. Archived events take no
	// new RSVPs and have an empty waiting list.
	ArchivedAt   *time.Time `db:"archived_at,omitempty" json:"archived_at,omitempty"`
}

func (e Event) Archived() bool {
	return e.ArchivedAt != nil
}

// Rsvp is the attendance record. One per (user, event).
type Rsvp struct {
	ID         int64      `db:"id" json:"id"`
	UserID     int64      `db:"user_id" json:"user_id"`
	EventID    int64      `db:"event_id" json:"event_id"`
	Status     RsvpStatus `db:"status" json:"status"`
	GuestCount int        `db:"guest_count" json:"guest_count"`
	RsvpDate   time.Time  `db:"rsvp_date" json:"rsvp_date"`
}

// WaitingListEntry holds a queue position. Priorities of one event form
// the dense sequence 1..N, lower is earlier.
type WaitingListEntry struct {
	ID       int64     `db:"id" json:"id"`
	UserID   int64     `db:"user_id" json:"user_id"`
	EventID  int64     `db:"event_id" json:"event_id"`
	Priority int       `db:"priority" json:"priority"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
	Notified bool      `db:"is_notified" json:"notified"`
}

type Notification struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	EventID   int64     `db:"event_id" json:"event_id"`
	Type      string    `db:"type" json:"type"`
	Title     string    `db:"title" json:"title"`
	Message   string    `db:"message" json:"message"`
	IsRead    bool      `db:"is_read" json:"is_read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
