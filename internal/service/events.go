package service

import (
	"strings"

	"github.com/wb-go/wbf/ginext"

	"eventWaitlist/internal/dto"
	"eventWaitlist/internal/model"
)

func (s *service) CreateEvent(ctx *ginext.Context) {
	var req dto.CreateEventRequest
	if !s.bind(ctx, &req) {
		return
	}

	event := &model.Event{
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		Location:     req.Location,
		StartDate:    req.StartDate.UTC(),
		MaxAttendees: req.MaxAttendees,
	}

	id, err := s.repo.CreateEvent(ctx.Request.Context(), event)
	if err != nil {
		s.writeError(ctx, err, "failed to create event in DB")
		return
	}

	s.log.Info().Int64("event_id", id).Int("max_attendees", event.MaxAttendees).Msg("event created successfully")
	dto.SuccessCreatedResponse(ctx, dto.FromEvent(*event))
}

func (s *service) eventInfo(ctx *ginext.Context, e model.Event) (dto.EventInfoResponse, error) {
	rctx := ctx.Request.Context()

	confirmed, err := s.repo.CountAttending(rctx, e.ID)
	if err != nil {
		return dto.EventInfoResponse{}, err
	}
	waiting, err := s.repo.CountWaiting(rctx, e.ID)
	if err != nil {
		return dto.EventInfoResponse{}, err
	}

	available := e.MaxAttendees - confirmed
	if available < 0 {
		available = 0
	}
	return dto.EventInfoResponse{
		EventResponse:  dto.FromEvent(e),
		Confirmed:      confirmed,
		AvailableSeats: available,
		WaitingCount:   waiting,
	}, nil
}

func (s *service) GetInfo(ctx *ginext.Context) {
	eventID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	event, err := s.repo.GetEventByID(ctx.Request.Context(), eventID)
	if err != nil {
		s.writeError(ctx, err, "failed to get event")
		return
	}

	resp, err := s.eventInfo(ctx, *event)
	if err != nil {
		s.writeError(ctx, err, "failed to count event seats")
		return
	}

	if ctx.Query("rsvps") == "true" {
		rsvps, err := s.repo.GetRsvpsByEventID(ctx.Request.Context(), eventID)
		if err != nil {
			s.writeError(ctx, err, "failed to get rsvps for event")
			return
		}
		resp.Rsvps = dto.FromRsvps(rsvps)
	}

	dto.SuccessResponse(ctx, resp)
}

func (s *service) GetAllEvents(ctx *ginext.Context) {
	events, err := s.repo.GetAllEvents(ctx.Request.Context())
	if err != nil {
		s.writeError(ctx, err, "failed to list events")
		return
	}

	resp := make([]dto.EventInfoResponse, 0, len(events))
	for _, e := range events {
		item, err := s.eventInfo(ctx, e)
		if err != nil {
			s.log.Error().Err(err).Int64("event_id", e.ID).Msg("failed to count seats for event")
			continue
		}
		resp = append(resp, item)
	}

	dto.SuccessResponse(ctx, resp)
}

func (s *service) DeleteEvent(ctx *ginext.Context) {
	eventID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	if err := s.engine.DeleteEvent(ctx.Request.Context(), eventID); err != nil {
		s.writeError(ctx, err, "failed to delete event")
		return
	}
	dto.SuccessResponse(ctx, map[string]int64{"deleted": eventID})
}

func (s *service) ArchiveEvent(ctx *ginext.Context) {
	eventID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	event, err := s.engine.ArchiveEvent(ctx.Request.Context(), eventID)
	if err != nil {
		s.writeError(ctx, err, "failed to archive event")
		return
	}
	dto.SuccessResponse(ctx, dto.FromEvent(event))
}

func (s *service) GetStats(ctx *ginext.Context) {
	eventID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	if _, err := s.repo.GetEventByID(ctx.Request.Context(), eventID); err != nil {
		s.writeError(ctx, err, "failed to get event")
		return
	}

	counters, err := s.stats.Counters(ctx.Request.Context(), eventID)
	if err != nil {
		s.writeError(ctx, err, "failed to read stats")
		return
	}

	out := make(map[string]int64, len(counters))
	for k, v := range counters {
		out[string(k)] = v
	}
	dto.SuccessResponse(ctx, dto.StatsResponse{EventID: eventID, Counters: out})
}
