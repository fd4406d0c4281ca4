// Package notify delivers out-of-band messages to providers, currently
// cancellation emails. In-app booking notifications live in the
// notifications package; this one leaves the process.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/bookline/bookline/pkg/logging"
)

// CancellationEmail describes a canceled appointment to the provider.
type CancellationEmail struct {
	ProviderName  string
	ProviderEmail string
	RequesterName string
	Date          time.Time
}

// Mailer sends appointment lifecycle emails. Implementations can be
// swapped (SendGrid, SES, SMTP) without changing callers.
type Mailer interface {
	AppointmentCanceled(ctx context.Context, msg CancellationEmail) error
}

// SendGridMailer sends emails via the SendGrid API.
type SendGridMailer struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

// SendGridConfig holds configuration for SendGrid.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// NewSendGridMailer creates a SendGrid mailer, or nil when no API key is
// configured so callers can treat email as optional.
func NewSendGridMailer(cfg SendGridConfig, logger *logging.Logger) *SendGridMailer {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = "Bookline"
	}
	return &SendGridMailer{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

// AppointmentCanceled emails the provider that a slot opened up again.
func (s *SendGridMailer) AppointmentCanceled(ctx context.Context, msg CancellationEmail) error {
	when := msg.Date.Format("Monday, January 2 at 3:04 PM")
	subject := "Appointment canceled"
	body := fmt.Sprintf(
		"Hi %s,\n\n%s canceled the appointment scheduled for %s. The slot is open for booking again.\n",
		msg.ProviderName, msg.RequesterName, when,
	)

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(msg.ProviderName, msg.ProviderEmail)
	email := mail.NewSingleEmail(from, subject, to, body, "")

	resp, err := s.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("notify: sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("notify: sendgrid status %d", resp.StatusCode)
	}
	s.logger.Info("cancellation email sent", "to", msg.ProviderEmail)
	return nil
}
