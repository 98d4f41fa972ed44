// Package notify delivers the optional admin notification after a
// successful upload. Delivery is best-effort: callers log failures
// and carry on, a failed notification never fails the upload.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
)

// Notifier reports a newly uploaded object.
type Notifier interface {
	Notify(ctx context.Context, fileID, host string) error
}

// Disabled is a Notifier that does nothing.
type Disabled struct{}

func (Disabled) Notify(context.Context, string, string) error { return nil }

// MailerConfig holds the outbound mail settings and the admin
// recipient for upload notifications.
type MailerConfig struct {
	Host       string
	Port       string
	User       string
	Password   string
	Sender     string
	AdminName  string
	AdminEmail string
}

// Mailer sends upload notifications to the configured admin address
// over SMTP.
type Mailer struct {
	cfg MailerConfig
}

// NewMailer creates a Mailer. The port defaults to 587 and the
// sender defaults to the SMTP user when unset.
func NewMailer(cfg MailerConfig) *Mailer {
	if cfg.Port == "" {
		cfg.Port = "587"
	}
	if cfg.Sender == "" {
		cfg.Sender = cfg.User
	}
	return &Mailer{cfg: cfg}
}

func (m *Mailer) Notify(ctx context.Context, fileID, host string) error {
	if m.cfg.Host == "" || m.cfg.AdminEmail == "" {
		return errors.New("smtp not configured")
	}

	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}

	addr := net.JoinHostPort(m.cfg.Host, m.cfg.Port)
	return smtp.SendMail(addr, auth, m.cfg.Sender, []string{m.cfg.AdminEmail}, m.Message(fileID, host))
}

// Message builds the notification mail for a new upload.
func (m *Mailer) Message(fileID, host string) []byte {
	to := m.cfg.AdminEmail
	if m.cfg.AdminName != "" {
		to = fmt.Sprintf("%s <%s>", m.cfg.AdminName, m.cfg.AdminEmail)
	}

	subject := fmt.Sprintf("new file uploaded to %s", host)
	body := fmt.Sprintf("new file uploaded to %s: https://%s/%s", host, host, fileID)

	return []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		m.cfg.Sender, to, subject, body,
	))
}
