package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sendgrid/rest"
	"github.com/wolfman30/medtrack/pkg/logging"
)

// EmailSender sends a single email. SES and SendGrid both implement it.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage represents an email to be sent.
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string
	HTML    string // optional
}

type sendGridAPI interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridSender sends emails via SendGrid API.
type SendGridSender struct {
	client    sendGridAPI
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// NewSendGridSender returns nil when no API key is configured.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = DefaultFromName
	}
	return &SendGridSender{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(msg.ToName, msg.To)
	html := msg.HTML
	if html == "" {
		html = msg.Body
	}
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, html)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		s.logger.Error("sendgrid send failed", "error", err, "to", msg.To)
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		s.logger.Error("sendgrid returned error status", "status", response.StatusCode, "to", msg.To)
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}

	s.logger.Info("email sent via sendgrid", "to", msg.To, "subject", msg.Subject, "status", response.StatusCode)
	return nil
}

// DefaultFromName is the sender display name when none is configured.
const DefaultFromName = "MedTrack"

// EmailPublisher turns a booking notification into a confirmation email
// addressed to the patient.
type EmailPublisher struct {
	sender EmailSender
	name   string
	logger *logging.Logger
}

var _ Publisher = (*EmailPublisher)(nil)

// NewEmailPublisher wraps sender. name identifies the provider in logs and metrics.
func NewEmailPublisher(sender EmailSender, name string, logger *logging.Logger) *EmailPublisher {
	if sender == nil {
		panic("notify: email sender cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if name == "" {
		name = "email"
	}
	return &EmailPublisher{sender: sender, name: name, logger: logger}
}

func (p *EmailPublisher) Name() string { return p.name }

func (p *EmailPublisher) Publish(ctx context.Context, n Notification) error {
	if n.PatientEmail == "" {
		p.logger.Warn("notification has no recipient, skipping email", "appointment_id", n.AppointmentID)
		return nil
	}
	return p.sender.Send(ctx, EmailMessage{
		To:      n.PatientEmail,
		ToName:  n.PatientName,
		Subject: n.Subject,
		Body:    n.Message,
	})
}
