package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPSender delivers notifications through a plain SMTP relay.
type SMTPSender struct {
	Addr string
	From string
}

func (s SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := strings.Join([]string{
		"From: " + s.From,
		"To: " + to,
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")
	if err := smtp.SendMail(s.Addr, nil, s.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}
