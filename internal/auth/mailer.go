package auth

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"

	"talkheal/cfg"
)

// Mailer delivers password reset tokens to the account owner. The token
// never travels anywhere else, so whoever presents it back has proven
// control of the mailbox.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// SMTPMailer sends reset mail through a plain SMTP relay.
type SMTPMailer struct {
	cfg cfg.SMTPConfig
}

func NewSMTPMailer(config cfg.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: config}
}

func (m *SMTPMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	if m.cfg.Host == "" {
		return errors.New("smtp not configured")
	}

	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: Reset your TalkHeal password\r\n\r\n"+
			"Use this code to reset your password. It expires shortly and works once.\r\n\r\n%s\r\n",
		m.cfg.From, email, token,
	)

	addr := m.cfg.Host + ":" + m.cfg.Port
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{email}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send reset mail: %w", err)
	}
	return nil
}
