package mailer

import (
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"

	"github.com/rs/zerolog"

	"eventWaitlist/internal/dto"
	"eventWaitlist/internal/waitlist"
)

var ErrUnknownKind = errors.New("unknown notification kind")

type Config struct {
	Host     string
	Port     int
	From     string
	Password string
	Enabled  bool
}

// Sender delivers one rendered notification to a recipient.
type Sender interface {
	Send(recipientEmail string, msg dto.NotificationMessage) error
}

type Mailer struct {
	cfg  Config
	log  *zerolog.Logger
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func New(cfg Config, log *zerolog.Logger) *Mailer {
	return &Mailer{cfg: cfg, log: log, send: smtp.SendMail}
}

// Render returns the subject and body for a notification kind.
func Render(msg dto.NotificationMessage) (string, string, error) {
	when := msg.StartDate.Format("02 Jan 2006 15:04")

	switch waitlist.NotificationKind(msg.Kind) {
	case waitlist.KindSpotAvailable:
		subject := fmt.Sprintf("A spot opened up for %s", msg.EventTitle)
		body := fmt.Sprintf("Hello!\n\nA spot became available for «%s» on %s at %s.\nYou have been moved from the waiting list to the attendee list.", msg.EventTitle, when, msg.Location)
		return subject, body, nil
	case waitlist.KindWaitlisted:
		subject := fmt.Sprintf("You are on the waiting list for %s", msg.EventTitle)
		body := fmt.Sprintf("Hello!\n\n«%s» is full right now. You are number %d on the waiting list and will be notified as soon as a spot opens.", msg.EventTitle, msg.Position)
		return subject, body, nil
	case waitlist.KindConfirmed:
		subject := fmt.Sprintf("RSVP confirmed: %s", msg.EventTitle)
		body := fmt.Sprintf("Hello!\n\nYour response to «%s» on %s at %s was recorded.\nStatus: %s\nGuests: %d", msg.EventTitle, when, msg.Location, msg.Status, msg.GuestCount)
		return subject, body, nil
	case waitlist.KindEventCancelled:
		subject := fmt.Sprintf("Event cancelled: %s", msg.EventTitle)
		body := fmt.Sprintf("Hello!\n\n«%s» planned for %s has been cancelled and archived. Your RSVP and waiting-list place no longer apply.", msg.EventTitle, when)
		return subject, body, nil
	}
	return "", "", fmt.Errorf("%w: %q", ErrUnknownKind, msg.Kind)
}

func (m *Mailer) Send(recipientEmail string, msg dto.NotificationMessage) error {
	if !m.cfg.Enabled {
		m.log.Debug().Str("email", recipientEmail).Str("kind", msg.Kind).Msg("mail disabled, skipping")
		return nil
	}

	subject, body, err := Render(msg)
	if err != nil {
		return err
	}

	raw := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		m.cfg.From, recipientEmail, subject, body,
	)

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	auth := smtp.PlainAuth("", m.cfg.From, m.cfg.Password, m.cfg.Host)

	if err := m.send(addr, auth, m.cfg.From, []string{recipientEmail}, []byte(raw)); err != nil {
		m.log.Warn().Err(err).Str("email", recipientEmail).Msg("failed to send email")
		return fmt.Errorf("send email: %w", err)
	}

	m.log.Info().Str("email", recipientEmail).Str("kind", msg.Kind).Msg("📧 email sent")
	return nil
}
