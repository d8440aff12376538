package notify

import (
	"context"

	"github.com/wolfman30/medtrack/pkg/logging"
)

// LogPublisher writes notifications to the log instead of delivering them.
// Used in development and when no topic is configured.
type LogPublisher struct {
	logger *logging.Logger
}

func NewLogPublisher(logger *logging.Logger) *LogPublisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Name() string { return "log" }

func (p *LogPublisher) Publish(_ context.Context, n Notification) error {
	p.logger.Info("notification (not delivered)",
		"subject", n.Subject,
		"message", n.Message,
		"appointment_id", n.AppointmentID,
	)
	return nil
}
