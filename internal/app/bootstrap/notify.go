package bootstrap

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/medtrack/internal/config"
	"github.com/wolfman30/medtrack/internal/notify"
	"github.com/wolfman30/medtrack/internal/observability/metrics"
	"github.com/wolfman30/medtrack/pkg/logging"
)

// BuildPublisher selects the notification sink for bookings.
func BuildPublisher(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (notify.Publisher, error) {
	provider := cfg.ResolvedNotifyProvider()
	switch provider {
	case "sns":
		if cfg.SNSTopicARN == "" {
			return nil, fmt.Errorf("%w: SNS_TOPIC_ARN is required for the sns provider", notify.ErrNotConfigured)
		}
		return notify.NewSNSPublisher(sns.NewFromConfig(awsCfg), cfg.SNSTopicARN, logger), nil
	case "sqs":
		if cfg.NotifyQueueURL == "" {
			return nil, fmt.Errorf("%w: NOTIFY_QUEUE_URL is required for the sqs provider", notify.ErrNotConfigured)
		}
		return notify.NewSQSPublisher(sqs.NewFromConfig(awsCfg), cfg.NotifyQueueURL), nil
	case "ses":
		if cfg.SESFromEmail == "" {
			return nil, fmt.Errorf("%w: SES_FROM_EMAIL is required for the ses provider", notify.ErrNotConfigured)
		}
		sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.EmailFromName,
		}, logger)
		return notify.NewEmailPublisher(sender, "ses", logger), nil
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.EmailFromName,
		}, logger)
		if sender == nil {
			return nil, fmt.Errorf("%w: SENDGRID_API_KEY is required for the sendgrid provider", notify.ErrNotConfigured)
		}
		return notify.NewEmailPublisher(sender, "sendgrid", logger), nil
	case "log":
		return notify.NewLogPublisher(logger), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown notify provider %q", provider)
	}
}

// BuildDispatcher wraps publisher in the background worker pool.
func BuildDispatcher(cfg *appconfig.Config, publisher notify.Publisher, m *metrics.ClinicMetrics, logger *logging.Logger) *notify.Dispatcher {
	return notify.NewDispatcher(publisher, notify.DispatcherConfig{
		Workers: cfg.NotifyWorkers,
		Buffer:  cfg.NotifyBuffer,
		Timeout: cfg.NotifyTimeout,
	}, m, logger)
}
