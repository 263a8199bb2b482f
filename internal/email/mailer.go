package email

import (
	"context"
	"log/slog"

	"gopkg.in/gomail.v2"
)

type Message struct {
	To      string
	ReplyTo string
	Subject string
	Body    string
	HTML    bool
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer delivers messages through an SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(host string, port int, user, password, from string) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	if msg.ReplyTo != "" {
		gm.SetHeader("Reply-To", msg.ReplyTo)
	}
	gm.SetHeader("Subject", msg.Subject)

	contentType := "text/plain"
	if msg.HTML {
		contentType = "text/html"
	}
	gm.SetBody(contentType, msg.Body)

	return m.dialer.DialAndSend(gm)
}

// LogMailer only logs messages. It is used when no SMTP relay is configured.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("email delivery disabled, message logged", "to", msg.To, "subject", msg.Subject, "reply_to", msg.ReplyTo)
	return nil
}
