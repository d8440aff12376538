package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/wolfman30/medtrack/pkg/logging"
)

type snsAPI interface {
	Publish(context.Context, *sns.PublishInput, ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSPublisher publishes booking notifications to an SNS topic.
type SNSPublisher struct {
	client   snsAPI
	topicARN string
	logger   *logging.Logger
}

var _ Publisher = (*SNSPublisher)(nil)

func NewSNSPublisher(client snsAPI, topicARN string, logger *logging.Logger) *SNSPublisher {
	if client == nil {
		panic("notify: SNS client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SNSPublisher{client: client, topicARN: topicARN, logger: logger}
}

func (p *SNSPublisher) Name() string { return "sns" }

func (p *SNSPublisher) Publish(ctx context.Context, n Notification) error {
	if p.topicARN == "" {
		return fmt.Errorf("%w: SNS topic ARN is empty", ErrNotConfigured)
	}
	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Subject:  aws.String(n.Subject),
		Message:  aws.String(n.Message),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"appointment_id": {DataType: aws.String("String"), StringValue: aws.String(n.AppointmentID)},
		},
	})
	if err != nil {
		return fmt.Errorf("notify: SNS publish failed: %w", err)
	}
	p.logger.Info("notification published to SNS", "appointment_id", n.AppointmentID, "message_id", aws.ToString(out.MessageId))
	return nil
}
