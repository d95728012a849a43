package dto

import (
	"net/http"
	"time"

	"github.com/wb-go/wbf/ginext"
)

const (
	FieldBadFormat     = "FIELD_BADFORMAT"
	FieldIncorrect     = "FIELD_INCORRECT"
	ServiceUnavailable = "SERVICE_UNAVAILABLE"
	InternalError      = "Service is currently unavailable. Please try again later."

	EventNotFound     = "EVENT_NOT_FOUND"
	UserNotFound      = "USER_NOT_FOUND"
	RsvpNotFound      = "RSVP_NOT_FOUND"
	NotWaitlisted     = "NOT_WAITLISTED"
	AlreadyWaitlisted = "ALREADY_WAITLISTED"
	EventArchived     = "EVENT_ARCHIVED"
	Unauthorized      = "UNAUTHORIZED"
	RateLimited       = "RATE_LIMITED"
)

type CreateUserRequest struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"required,min=1,max=255"`
}

type UserResponse struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateEventRequest struct {
	Title        string    `json:"title" validate:"required,max=255"`
	Description  string    `json:"description"`
	Location     string    `json:"location"`
	StartDate    time.Time `json:"start_date" validate:"required,future"`
	MaxAttendees int       `json:"max_attendees" validate:"positive"`
}

type EventResponse struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Location     string     `json:"location"`
	StartDate    time.Time  `json:"start_date"`
	MaxAttendees int        `json:"max_attendees"`
	CreatedAt    time.Time  `json:"created_at"`
	ArchivedAt   *time.Time `json:"archived_at,omitempty"`
}

type EventInfoResponse struct {
	EventResponse
	Confirmed      int            `json:"confirmed"`
	AvailableSeats int            `json:"available_seats"`
	WaitingCount   int            `json:"waiting_count"`
	Rsvps          []RsvpResponse `json:"rsvps,omitempty"`
}

type RsvpRequest struct {
	Status     string `json:"status" validate:"required,rsvpstatus"`
	GuestCount int    `json:"guest_count" validate:"gte=0,lte=50"`
}

type RsvpResponse struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	EventID    int64     `json:"event_id"`
	Status     string    `json:"status"`
	GuestCount int       `json:"guest_count"`
	RsvpDate   time.Time `json:"rsvp_date"`
}

type WaitingEntryResponse struct {
	UserID   int64     `json:"user_id"`
	EventID  int64     `json:"event_id"`
	Priority int       `json:"priority"`
	JoinedAt time.Time `json:"joined_at"`
	Notified bool      `json:"notified"`
}

// AdmissionResponse carries the outcome of POST /rsvp; exactly one of Rsvp
// and Entry is set.
type AdmissionResponse struct {
	Result string                `json:"result"`
	Rsvp   *RsvpResponse         `json:"rsvp,omitempty"`
	Entry  *WaitingEntryResponse `json:"waiting_list_entry,omitempty"`
}

type PositionResponse struct {
	EventID  int64 `json:"event_id"`
	UserID   int64 `json:"user_id"`
	Position int   `json:"position"`
}

type PromotionResponse struct {
	EventID  int64          `json:"event_id"`
	Promoted []RsvpResponse `json:"promoted"`
}

type StatsResponse struct {
	EventID  int64            `json:"event_id"`
	Counters map[string]int64 `json:"counters"`
}

type NotificationResponse struct {
	ID        int64     `json:"id"`
	EventID   int64     `json:"event_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationMessage is the broker payload between the dispatcher and the
// notification consumer.
type NotificationMessage struct {
	UserID     int64     `json:"user_id"`
	EventID    int64     `json:"event_id"`
	Kind       string    `json:"kind"`
	EventTitle string    `json:"event_title"`
	StartDate  time.Time `json:"start_date"`
	Location   string    `json:"location"`
	Status     string    `json:"status,omitempty"`
	GuestCount int       `json:"guest_count,omitempty"`
	Position   int       `json:"position,omitempty"`
	SentAt     time.Time `json:"sent_at"`
}

type Response struct {
	Status string `json:"status"`
	Error  *Error `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type Error struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
}

func ErrorResponse(c *ginext.Context, httpStatus int, code, desc string) {
	c.JSON(httpStatus, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func BadResponseError(c *ginext.Context, code, desc string) {
	ErrorResponse(c, http.StatusBadRequest, code, desc)
}

func InternalServerError(c *ginext.Context) {
	ErrorResponse(c, http.StatusInternalServerError, ServiceUnavailable, InternalError)
}

func FieldBadFormatError(c *ginext.Context, fieldName string) {
	BadResponseError(c, FieldBadFormat, "Field '"+fieldName+"' has bad format")
}

func FieldIncorrectError(c *ginext.Context, fieldName string) {
	BadResponseError(c, FieldIncorrect, "Field '"+fieldName+"' is incorrect")
}

func EventNotFoundError(c *ginext.Context) {
	ErrorResponse(c, http.StatusNotFound, EventNotFound, "Event not found")
}

func UserNotFoundError(c *ginext.Context) {
	ErrorResponse(c, http.StatusNotFound, UserNotFound, "User not found")
}

func RsvpNotFoundError(c *ginext.Context) {
	ErrorResponse(c, http.StatusNotFound, RsvpNotFound, "You have not responded to this event")
}

func NotWaitlistedError(c *ginext.Context) {
	ErrorResponse(c, http.StatusNotFound, NotWaitlisted, "You are not on the waiting list for this event")
}

func EventArchivedError(c *ginext.Context) {
	ErrorResponse(c, http.StatusConflict, EventArchived, "Event is archived")
}

func AlreadyWaitlistedError(c *ginext.Context, data any) {
	c.JSON(http.StatusConflict, Response{
		Status: "error",
		Error: &Error{
			Code: AlreadyWaitlisted,
			Desc: "You are already on the waiting list for this event",
		},
		Data: data,
	})
}

func UnauthorizedError(c *ginext.Context) {
	ErrorResponse(c, http.StatusUnauthorized, Unauthorized, "Header 'X-User-ID' is required")
}

func RateLimitedError(c *ginext.Context) {
	ErrorResponse(c, http.StatusTooManyRequests, RateLimited, "Too many requests, slow down")
}

func SuccessResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Status: "ok",
		Data:   data,
	})
}

func SuccessCreatedResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusCreated, Response{
		Status: "ok",
		Data:   data,
	})
}
