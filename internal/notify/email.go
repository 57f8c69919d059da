package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/jordan-wright/email"
)

// SMTPConfig holds the outgoing mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailNotifier sends reminders over SMTP.
type EmailNotifier struct {
	cfg    SMTPConfig
	logger *slog.Logger
	send   func(addr string, auth smtp.Auth, e *email.Email) error
}

func NewEmailNotifier(cfg SMTPConfig, logger *slog.Logger) *EmailNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailNotifier{
		cfg:    cfg,
		logger: logger,
		send: func(addr string, auth smtp.Auth, e *email.Email) error {
			return e.Send(addr, auth)
		},
	}
}

func (n *EmailNotifier) SendReminder(ctx context.Context, r Reminder) error {
	if r.Owner.Email == "" {
		return errors.New("owner has no e-mail address")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject, body := Render(r)
	e := email.NewEmail()
	e.From = n.cfg.From
	e.To = []string{r.Owner.Email}
	e.Subject = subject
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	if err := n.send(addr, auth, e); err != nil {
		n.logger.ErrorContext(ctx, "Failed to send reminder", "owner_id", r.Owner.ID, "error", err)
		return fmt.Errorf("send reminder: %w", err)
	}

	n.logger.InfoContext(ctx, "Reminder sent", "owner_id", r.Owner.ID, "subject", subject)
	return nil
}
