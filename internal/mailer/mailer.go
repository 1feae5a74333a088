package mailer

import (
	"context"
	"fmt"
	"net/smtp"
)

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends transactional email. Implementations must be safe for
// concurrent use; request handlers and the overdue daemon share one.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer delivers through a plain-auth SMTP relay.
type SMTPMailer struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func (m *SMTPMailer) Send(_ context.Context, msg Message) error {
	headers := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n",
		m.From, msg.To, msg.Subject,
	)
	auth := smtp.PlainAuth("", m.Username, m.Password, m.Host)
	return smtp.SendMail(m.Host+":"+m.Port, auth, m.From, []string{msg.To}, []byte(headers+msg.Body))
}
