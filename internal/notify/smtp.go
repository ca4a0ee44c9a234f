package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// SMTPSender delivers plain text mail through an SMTP relay. Auth is only
// attempted when a username is configured.
type SMTPSender struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// sendMail is swapped in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
		sendMail: smtp.SendMail,
	}
}

func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	if m.To == "" {
		return ErrNoRecipient
	}
	if s.Host == "" || s.From == "" {
		return errors.New("notify: smtp host and from address are required")
	}

	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}

	addr := net.JoinHostPort(s.Host, fmt.Sprint(s.Port))
	msg := buildMIME(s.From, m, time.Now())

	// net/smtp has no context support; run the send aside and stop waiting
	// when ctx ends.
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.sendMail(addr, auth, s.From, []string{m.To}, msg)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("notify: smtp send to %s: %w", m.To, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildMIME(from string, m Message, now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(m.Body, "\n", "\r\n"))
	return []byte(b.String())
}
