// Package email delivers transactional mail over SMTP. Delivery is
// best-effort: purchase processing must not fail because a mail relay
// is down.
package email

import (
	"fmt"
	"net/smtp"
	"os"
)

type Sender struct {
	host string
	port string
	user string
	pass string
	from string
}

// NewFromEnv builds a sender from SMTP_* environment variables. Returns
// nil when the relay is not configured, in which case callers skip
// sending.
func NewFromEnv() *Sender {
	s := &Sender{
		host: os.Getenv("SMTP_HOST"),
		port: os.Getenv("SMTP_PORT"),
		user: os.Getenv("SMTP_USER"),
		pass: os.Getenv("SMTP_PASS"),
		from: os.Getenv("EMAIL_FROM"),
	}
	if s.host == "" || s.port == "" || s.user == "" || s.pass == "" {
		return nil
	}
	if s.from == "" {
		s.from = s.user
	}
	return s
}

// Send delivers a plain-text message.
func (s *Sender) Send(to, subject, body string) error {
	auth := smtp.PlainAuth("", s.user, s.pass, s.host)

	msg := []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"\r\n"+
		"%s\r\n", s.from, to, subject, body))

	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return smtp.SendMail(addr, auth, s.from, []string{to}, msg)
}
