package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"

	"github.com/craftora/marketplace/internal/logging"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Mailer delivers transactional email over an SMTP relay. Every send is
// best-effort: callers log failures and carry on, an undeliverable email
// never fails the parent operation. With no host configured the mailer only
// logs, which is the development mode.
type Mailer struct {
	cfg    Config
	client *gomail.Client
}

func New(cfg Config) (*Mailer, error) {
	m := &Mailer{cfg: cfg}
	if cfg.Host == "" {
		return m, nil
	}

	client, err := gomail.NewClient(cfg.Host,
		gomail.WithPort(cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
	)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	m.client = client
	return m, nil
}

func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	l := logging.FromContext(ctx)
	if m == nil || m.client == nil {
		l.Info("email (not delivered, smtp disabled)", "to", to, "subject", subject)
		return nil
	}

	msg := gomail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}

// SendAsyncSafe sends without surfacing the error, logging it instead.
func (m *Mailer) SendAsyncSafe(ctx context.Context, to, subject, body string) {
	if err := m.Send(ctx, to, subject, body); err != nil {
		logging.FromContext(ctx).Error("email send failed", "to", to, "error", err)
	}
}

func (m *Mailer) SendOTP(ctx context.Context, to, name, otp string) {
	body := fmt.Sprintf("Hi %s,\n\nYour password reset code is %s. It expires in 10 minutes.\n\nIf you did not request this, ignore this email.", name, otp)
	m.SendAsyncSafe(ctx, to, "Your password reset code", body)
}

func (m *Mailer) SendWelcome(ctx context.Context, to, name string) {
	body := fmt.Sprintf("Hi %s,\n\nWelcome to Craftora! Start exploring the catalog and happy shopping.", name)
	m.SendAsyncSafe(ctx, to, "Welcome to Craftora", body)
}

func (m *Mailer) SendOrderConfirmation(ctx context.Context, to, name, orderNumber string, total float64) {
	body := fmt.Sprintf("Hi %s,\n\nYour order %s has been placed. Total: $%.2f.\n\nWe will let you know when it ships.", name, orderNumber, total)
	m.SendAsyncSafe(ctx, to, fmt.Sprintf("Order confirmation %s", orderNumber), body)
}

func (m *Mailer) SendVendorDecision(ctx context.Context, to, name, shopName, decision, reason string) {
	body := fmt.Sprintf("Hi %s,\n\nYour vendor application for %q has been %s.", name, shopName, decision)
	if reason != "" {
		body += "\nReason: " + reason
	}
	m.SendAsyncSafe(ctx, to, "Vendor application update", body)
}
