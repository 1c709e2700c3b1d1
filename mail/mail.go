// Package mail delivers the HTML rendering of a run by SMTP.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/jordan-wright/email"
)

// Settings describes the SMTP server and the message envelope.
type Settings struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       []string
}

// Sender sends rumour reports.
type Sender struct {
	settings Settings
	logger   *slog.Logger

	send func(e *email.Email, addr string, auth smtp.Auth) error
}

// NewSender creates a Sender. A nil logger uses slog.Default().
func NewSender(settings Settings, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		settings: settings,
		logger:   logger,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// Message builds the email for a report. The HTML body is sent as is, with
// a plain-text part pointing readers at an HTML-capable client.
func (s *Sender) Message(subject, html string) *email.Email {
	e := email.NewEmail()
	e.From = s.settings.From
	e.To = append([]string(nil), s.settings.To...)
	e.Subject = subject
	e.HTML = []byte(html)
	e.Text = []byte("This report is HTML only; open it in an HTML-capable mail client.\n")
	return e
}

// Send delivers subject and html to every recipient. Servers without AUTH
// support are retried without credentials.
func (s *Sender) Send(ctx context.Context, subject, html string) error {
	if len(s.settings.To) == 0 {
		return errors.New("no mail recipients configured")
	}

	e := s.Message(subject, html)
	addr := net.JoinHostPort(s.settings.Host, strconv.Itoa(s.settings.Port))

	var auth smtp.Auth
	if s.settings.User != "" {
		auth = smtp.PlainAuth("", s.settings.User, s.settings.Password, s.settings.Host)
	}

	err := s.send(e, addr, auth)
	if err != nil && auth != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		s.logger.WarnContext(ctx, "smtp server has no AUTH, retrying without credentials", "addr", addr)
		err = s.send(e, addr, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to send mail via %s: %w", addr, err)
	}

	s.logger.InfoContext(ctx, "mail sent", "recipients", len(e.To), "subject", subject)
	return nil
}
