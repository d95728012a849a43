package dto

import "eventWaitlist/internal/model"

func FromUser(u model.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, FirstName: u.FirstName, CreatedAt: u.CreatedAt}
}

func FromEvent(e model.Event) EventResponse {
	return EventResponse{
		ID:           e.ID,
		Title:        e.Title,
		Description:  e.Description,
		Location:     e.Location,
		StartDate:    e.StartDate,
		MaxAttendees: e.MaxAttendees,
		CreatedAt:    e.CreatedAt,
		ArchivedAt:   e.ArchivedAt,
	}
}

func FromRsvp(r model.Rsvp) RsvpResponse {
	return RsvpResponse{
		ID:         r.ID,
		UserID:     r.UserID,
		EventID:    r.EventID,
		Status:     string(r.Status),
		GuestCount: r.GuestCount,
		RsvpDate:   r.RsvpDate,
	}
}

func FromRsvps(rs []model.Rsvp) []RsvpResponse {
	out := make([]RsvpResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, FromRsvp(r))
	}
	return out
}

func FromEntry(e model.WaitingListEntry) WaitingEntryResponse {
	return WaitingEntryResponse{
		UserID:   e.UserID,
		EventID:  e.EventID,
		Priority: e.Priority,
		JoinedAt: e.JoinedAt,
		Notified: e.Notified,
	}
}

func FromEntries(es []model.WaitingListEntry) []WaitingEntryResponse {
	out := make([]WaitingEntryResponse, 0, len(es))
	for _, e := range es {
		out = append(out, FromEntry(e))
	}
	return out
}

func FromNotifications(ns []model.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(ns))
	for _, n := range ns {
		out = append(out, NotificationResponse{
			ID:        n.ID,
			EventID:   n.EventID,
			Type:      n.Type,
			Title:     n.Title,
			Message:   n.Message,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}
