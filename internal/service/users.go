package service

import (
	"strings"

	"github.com/wb-go/wbf/ginext"

	"eventWaitlist/internal/dto"
	"eventWaitlist/internal/model"
)

func (s *service) CreateUser(ctx *ginext.Context) {
	var req dto.CreateUserRequest
	if !s.bind(ctx, &req) {
		return
	}

	user := &model.User{
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		FirstName: strings.TrimSpace(req.FirstName),
	}
	id, err := s.repo.CreateUser(ctx.Request.Context(), user)
	if err != nil {
		s.writeError(ctx, err, "failed to create user")
		return
	}

	s.log.Info().Int64("user_id", id).Msg("user created")
	dto.SuccessCreatedResponse(ctx, dto.FromUser(*user))
}

// GetNotifications lists the caller's own notifications only.
func (s *service) GetNotifications(ctx *ginext.Context) {
	userID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	caller, ok := actingUser(ctx)
	if !ok {
		return
	}
	if caller != userID {
		dto.UnauthorizedError(ctx)
		return
	}

	if _, err := s.repo.GetUserByID(ctx.Request.Context(), userID); err != nil {
		s.writeError(ctx, err, "failed to get user")
		return
	}

	ns, err := s.repo.GetNotificationsByUserID(ctx.Request.Context(), userID)
	if err != nil {
		s.writeError(ctx, err, "failed to list notifications")
		return
	}
	dto.SuccessResponse(ctx, dto.FromNotifications(ns))
}
