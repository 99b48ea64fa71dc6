package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

var _ Notifier = (*EmailNotifier)(nil)

// EmailNotifier delivers messages over SMTP with STARTTLS. Missing
// credentials disable the notifier instead of failing startup.
type EmailNotifier struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       []string
	subject  string
	enabled  bool
	log      *slog.Logger

	// sendMail is swappable in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier creates an EmailNotifier for the given SMTP account.
func NewEmailNotifier(host string, port int, username, password, from string, to []string, log *slog.Logger) *EmailNotifier {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("notifier", "email")

	if port == 0 {
		port = 587
	}

	e := &EmailNotifier{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
		subject:  "quantbot notification",
		enabled:  host != "" && username != "" && password != "" && from != "" && len(to) > 0,
		log:      log,
		sendMail: smtp.SendMail,
	}
	if !e.enabled {
		log.Warn("email notifier disabled: missing smtp credentials")
	}
	return e
}

func (e *EmailNotifier) Name() string  { return "email" }
func (e *EmailNotifier) Enabled() bool { return e.enabled }

// Send delivers the message as a plain-text email.
func (e *EmailNotifier) Send(_ context.Context, message string) error {
	if !e.enabled {
		return ErrDisabled
	}

	addr := fmt.Sprintf("%s:%d", e.host, e.port)
	auth := smtp.PlainAuth("", e.username, e.password, e.host)
	if err := e.sendMail(addr, auth, e.from, e.to, e.buildMessage(message)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (e *EmailNotifier) buildMessage(body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", e.subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
