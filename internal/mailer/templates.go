package mailer

import "fmt"

// VerificationEmail carries the OTP sent on registration.
func VerificationEmail(to, name string, code int) Message {
	return Message{
		To:      to,
		Subject: "Bookworm Library verification code",
		Body: fmt.Sprintf(
			"Hello %s,\n\nYour verification code is %d. It expires in 15 minutes.\n\nIf you did not request this, please ignore this email.\n\nBookworm Library",
			name, code,
		),
	}
}

// PasswordResetEmail carries the one-time reset link.
func PasswordResetEmail(to, resetURL string) Message {
	return Message{
		To:      to,
		Subject: "Bookworm Library password recovery",
		Body: fmt.Sprintf(
			"You requested a password reset.\n\nOpen the link below to choose a new password. It expires in 15 minutes.\n\n%s\n\nIf you did not request this, please ignore this email.\n\nBookworm Library",
			resetURL,
		),
	}
}

// OverdueReminderEmail is sent by the overdue sweep.
func OverdueReminderEmail(to, name string) Message {
	return Message{
		To:      to,
		Subject: "Book Return Reminder",
		Body: fmt.Sprintf(
			"Hello %s,\n\nThis is a reminder that the book you borrowed is past its due date. Please return it to the library as soon as possible.\n\nThank you,\nBookworm Library",
			name,
		),
	}
}
