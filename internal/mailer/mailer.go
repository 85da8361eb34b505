// Package mailer delivers billing documents over SMTP.
package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// Mailer sends mails with a single attachment.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewMailer creates an SMTP mailer.
func NewMailer(host string, port int, username, password, from string) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// Send delivers a document to the recipient. It returns only after the
// SMTP relay accepted the message, so callers can treat a nil error as
// confirmed handoff.
func (m *Mailer) Send(to, name, subject, attachmentPath string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetAddressHeader("To", to, name)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", "Please find the attached document.")
	msg.Attach(attachmentPath)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send to %s failed: %w", to, err)
	}
	return nil
}
