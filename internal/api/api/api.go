package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"eventWaitlist/cmd/middleware"
	"eventWaitlist/internal/service"
)

type Routers struct {
	Service service.Service
	Log     *zerolog.Logger
	// Limiters throttles RSVP and waiting-list mutations. Nil disables it.
	Limiters *middleware.Limiters
	Mode     string
}

func NewRouters(r *Routers) *ginext.Engine {
	mode := r.Mode
	if mode == "" {
		mode = "release"
	}
	app := ginext.New(mode)

	app.Use(middleware.LoggingMiddleware(r.Log))
	app.Use(cors.Default())
	apiGroup := app.Group("/v1")

	limited := []gin.HandlerFunc{}
	if r.Limiters != nil {
		limited = append(limited, middleware.RateLimit(r.Limiters))
	}
	with := func(h gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, limited...), h)
	}

	apiGroup.POST("/users", r.Service.CreateUser)
	apiGroup.GET("/users/:id/notifications", r.Service.GetNotifications)

	apiGroup.POST("/events", r.Service.CreateEvent)
	apiGroup.GET("/events", r.Service.GetAllEvents)
	apiGroup.GET("/events/:id", r.Service.GetInfo)
	apiGroup.DELETE("/events/:id", r.Service.DeleteEvent)
	apiGroup.POST("/events/:id/archive", r.Service.ArchiveEvent)

	apiGroup.POST("/events/:id/rsvp", with(r.Service.Rsvp)...)
	apiGroup.DELETE("/events/:id/rsvp", with(r.Service.CancelRsvp)...)

	apiGroup.GET("/events/:id/waiting-list", r.Service.GetWaitingList)
	apiGroup.DELETE("/events/:id/waiting-list", with(r.Service.LeaveWaitingList)...)
	apiGroup.GET("/events/:id/waiting-list/position", r.Service.GetPosition)

	apiGroup.POST("/events/:id/promote", with(r.Service.Promote)...)
	apiGroup.GET("/events/:id/stats", r.Service.GetStats)

	return app
}
