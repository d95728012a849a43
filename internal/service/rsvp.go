package service

import (
	"errors"

	"github.com/wb-go/wbf/ginext"

	"eventWaitlist/internal/dto"
	"eventWaitlist/internal/model"
	"eventWaitlist/internal/waitlist"
)

func (s *service) Rsvp(ctx *ginext.Context) {
	eventID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	userID, ok := actingUser(ctx)
	if !ok {
		return
	}

	var req dto.RsvpRequest
	if !s.bind(ctx, &req) {
		return
	}

	rctx := ctx.Request.Context()
	adm, err := s.engine.RequestRsvp(rctx, userID, eventID, model.RsvpStatus(req.Status), req.GuestCount)
	if err != nil {
		if errors.Is(err, waitlist.ErrAlreadyWaitlisted) {
			var entry *dto.WaitingEntryResponse
			if adm.Entry != nil {
				e := dto.FromEntry(*adm.Entry)
				entry = &e
			}
			dto.AlreadyWaitlistedError(ctx, dto.AdmissionResponse{Result: string(adm.Outcome), Entry: entry})
			return
		}
		s.writeError(ctx, err, "failed to process rsvp")
		return
	}

	s.engine.AnnounceAdmission(rctx, userID, adm)

	resp := dto.AdmissionResponse{Result: string(adm.Outcome)}
	if adm.Rsvp != nil {
		r := dto.FromRsvp(*adm.Rsvp)
		resp.Rsvp = &r
	}
	if adm.Entry != nil {
		e := dto.FromEntry(*adm.Entry)
		resp.Entry = &e
	}

	if adm.Outcome == waitlist.OutcomeUpdated {
		dto.SuccessResponse(ctx, resp)
		return
	}
	dto.SuccessCreatedResponse(ctx, resp)
}

func (s *service) CancelRsvp(ctx *ginext.Context) {
	eventID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	userID, ok := actingUser(ctx)
	if !ok {
		return
	}

	if err := s.engine.CancelRsvp(ctx.Request.Context(), userID, eventID); err != nil {
		s.writeError(ctx, err, "failed to cancel rsvp")
		return
	}
	dto.SuccessResponse(ctx, map[string]string{"result": "cancelled"})
}

func (s *service) GetWaitingList(ctx *ginext.Context) {
	eventID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	rctx := ctx.Request.Context()
	if _, err := s.repo.GetEventByID(rctx, eventID); err != nil {
		s.writeError(ctx, err, "failed to get event")
		return
	}

	entries, err := s.engine.ListWaitingList(rctx, eventID)
	if err != nil {
		s.writeError(ctx, err, "failed to list waiting list")
		return
	}
	dto.SuccessResponse(ctx, dto.FromEntries(entries))
}

func (s *service) LeaveWaitingList(ctx *ginext.Context) {
	eventID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	userID, ok := actingUser(ctx)
	if !ok {
		return
	}

	if err := s.engine.LeaveWaitingList(ctx.Request.Context(), userID, eventID); err != nil {
		s.writeError(ctx, err, "failed to leave waiting list")
		return
	}
	dto.SuccessResponse(ctx, map[string]string{"result": "left"})
}

func (s *service) GetPosition(ctx *ginext.Context) {
	eventID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	userID, ok := actingUser(ctx)
	if !ok {
		return
	}

	rctx := ctx.Request.Context()
	if _, err := s.repo.GetEventByID(rctx, eventID); err != nil {
		s.writeError(ctx, err, "failed to get event")
		return
	}

	pos, err := s.engine.PositionOf(rctx, userID, eventID)
	if err != nil {
		s.writeError(ctx, err, "failed to read position")
		return
	}
	dto.SuccessResponse(ctx, dto.PositionResponse{EventID: eventID, UserID: userID, Position: pos})
}

func (s *service) Promote(ctx *ginext.Context) {
	eventID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	promoted, err := s.engine.Promote(ctx.Request.Context(), eventID)
	if err != nil {
		s.writeError(ctx, err, "failed to promote")
		return
	}
	dto.SuccessResponse(ctx, dto.PromotionResponse{EventID: eventID, Promoted: dto.FromRsvps(promoted)})
}
