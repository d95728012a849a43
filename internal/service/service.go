package service

import (
	"errors"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"eventWaitlist/internal/dto"
	"eventWaitlist/internal/repo"
	"eventWaitlist/internal/stats"
	"eventWaitlist/internal/waitlist"
	"eventWaitlist/pkg/validator"
)

// UserHeader carries the acting user id on every user-scoped request.
const UserHeader = "X-User-ID"

type Service interface {
	CreateUser(ctx *ginext.Context)
	GetNotifications(ctx *ginext.Context)

	CreateEvent(ctx *ginext.Context)
	GetInfo(ctx *ginext.Context)
	GetAllEvents(ctx *ginext.Context)
	DeleteEvent(ctx *ginext.Context)
	ArchiveEvent(ctx *ginext.Context)

	Rsvp(ctx *ginext.Context)
	CancelRsvp(ctx *ginext.Context)

	GetWaitingList(ctx *ginext.Context)
	LeaveWaitingList(ctx *ginext.Context)
	GetPosition(ctx *ginext.Context)
	Promote(ctx *ginext.Context)
	GetStats(ctx *ginext.Context)
}

type service struct {
	repo   repo.Repository
	engine *waitlist.Engine
	stats  stats.Reader
	log    *zerolog.Logger
}

func NewService(repo repo.Repository, engine *waitlist.Engine, st stats.Reader, logger *zerolog.Logger) Service {
	if st == nil {
		st = stats.Noop{}
	}
	return &service{
		repo:   repo,
		engine: engine,
		stats:  st,
		log:    logger,
	}
}

func pathID(ctx *ginext.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		dto.FieldBadFormatError(ctx, name)
		return 0, false
	}
	return id, true
}

func actingUser(ctx *ginext.Context) (int64, bool) {
	raw := ctx.GetHeader(UserHeader)
	if raw == "" {
		dto.UnauthorizedError(ctx)
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		dto.FieldBadFormatError(ctx, UserHeader)
		return 0, false
	}
	return id, true
}

func (s *service) bind(ctx *ginext.Context, req any) bool {
	if err := ctx.ShouldBindJSON(req); err != nil {
		s.log.Debug().Err(err).Str("path", ctx.FullPath()).Msg("failed to parse request")
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return false
	}
	if verr := validator.Validate(ctx.Request.Context(), req); verr != nil {
		var fe *validator.FieldError
		if errors.As(verr, &fe) {
			dto.BadResponseError(ctx, dto.FieldIncorrect, fe.Error())
			return false
		}
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return false
	}
	return true
}

// writeError maps core and repository errors onto the response envelope.
func (s *service) writeError(ctx *ginext.Context, err error, msg string) {
	switch {
	case errors.Is(err, waitlist.ErrEventNotFound), errors.Is(err, repo.ErrEventNotFound):
		dto.EventNotFoundError(ctx)
	case errors.Is(err, waitlist.ErrUserNotFound), errors.Is(err, repo.ErrUserNotFound):
		dto.UserNotFoundError(ctx)
	case errors.Is(err, waitlist.ErrRsvpNotFound), errors.Is(err, repo.ErrRsvpNotFound):
		dto.RsvpNotFoundError(ctx)
	case errors.Is(err, waitlist.ErrNotWaitlisted), errors.Is(err, repo.ErrEntryNotFound):
		dto.NotWaitlistedError(ctx)
	case errors.Is(err, waitlist.ErrEventArchived):
		dto.EventArchivedError(ctx)
	case errors.Is(err, waitlist.ErrInvalidStatus):
		dto.FieldIncorrectError(ctx, "status")
	default:
		s.log.Error().Err(err).Str("path", ctx.FullPath()).Msg(msg)
		dto.InternalServerError(ctx)
	}
}
