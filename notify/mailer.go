package notify

import (
	"fmt"
	"html"

	"gopkg.in/gomail.v2"
)

// Mailer sends notification emails over SMTP.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewMailer returns nil when host is empty; a nil Mailer sends nothing.
func NewMailer(host string, port int, user, password, from string) *Mailer {
	if host == "" {
		return nil
	}
	return &Mailer{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
	}
}

func (m *Mailer) Send(msg Message) error {
	if m == nil || msg.RecipientEmail == "" {
		return nil
	}
	return m.dialer.DialAndSend(composeEmail(m.from, msg))
}

func composeEmail(from string, msg Message) *gomail.Message {
	subject := fmt.Sprintf("[%s] %s", msg.EntityRef, msg.StatusTag)
	body := fmt.Sprintf("<p>%s</p><p>Reference: <b>%s</b><br>Status: %s</p>",
		html.EscapeString(msg.Message), html.EscapeString(msg.EntityRef), html.EscapeString(msg.StatusTag))

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.RecipientEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	return m
}
