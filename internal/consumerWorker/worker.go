package consumerWorker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"eventWaitlist/internal/dto"
	"eventWaitlist/internal/mailer"
	"eventWaitlist/internal/model"
	"eventWaitlist/internal/rabbit"
	"eventWaitlist/internal/repo"
)

// Store is the part of the repository the worker writes to.
type Store interface {
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	CreateNotification(ctx context.Context, n *model.Notification) (int64, error)
}

// Handler turns a notification message into an in-app notification row and
// an e-mail.
type Handler struct {
	store  Store
	sender mailer.Sender
	log    *zerolog.Logger
}

func NewHandler(store Store, sender mailer.Sender, log *zerolog.Logger) *Handler {
	return &Handler{store: store, sender: sender, log: log}
}

// HandleBody returns an error only for failures worth a redelivery.
func (h *Handler) HandleBody(ctx context.Context, body []byte) error {
	var msg dto.NotificationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		h.log.Error().Err(err).Msgf("Failed to unmarshal message: %s", string(body))
		return nil
	}
	return h.Handle(ctx, msg)
}

func (h *Handler) Handle(ctx context.Context, msg dto.NotificationMessage) error {
	h.log.Info().
		Int64("user_id", msg.UserID).
		Int64("event_id", msg.EventID).
		Str("kind", msg.Kind).
		Msg("📩 notification received")

	subject, text, err := mailer.Render(msg)
	if err != nil {
		h.log.Warn().Err(err).Msg("skipping notification")
		return nil
	}

	user, err := h.store.GetUserByID(ctx, msg.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			h.log.Warn().Int64("user_id", msg.UserID).Msg("recipient no longer exists")
			return nil
		}
		return fmt.Errorf("load recipient: %w", err)
	}

	n := &model.Notification{
		UserID:  msg.UserID,
		EventID: msg.EventID,
		Type:    msg.Kind,
		Title:   subject,
		Message: text,
	}
	if _, err := h.store.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}

	if err := h.sender.Send(user.Email, msg); err != nil {
		h.log.Warn().Err(err).Str("email", user.Email).Msg("Failed to send notification on e-mail")
	}
	return nil
}

type Reader struct {
	RMQ     rabbit.Consumer
	handler *Handler
	log     *zerolog.Logger
	done    chan struct{}
	cancel  context.CancelFunc
}

func NewReader(rmq rabbit.Consumer, handler *Handler, log *zerolog.Logger) *Reader {
	return &Reader{
		RMQ:     rmq,
		handler: handler,
		log:     log,
		done:    make(chan struct{}),
	}
}

func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.log.Info().Msg("🐇 RabbitMQ Reader started")

	go func() {
		defer close(r.done)

		if err := r.RMQ.Consume(func(body []byte) error {
			return r.handler.HandleBody(cctx, body)
		}); err != nil {
			r.log.Error().Err(err).Msg("Failed to start consuming")
			return
		}

		<-cctx.Done()
		r.log.Info().Msg("🛑 RabbitMQ Reader stopped by context")
	}()
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}
