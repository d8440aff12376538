package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type sqsAPI interface {
	SendMessage(context.Context, *sqs.SendMessageInput, ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher enqueues booking notifications as JSON for a downstream consumer.
type SQSPublisher struct {
	client   sqsAPI
	queueURL string
}

var _ Publisher = (*SQSPublisher)(nil)

func NewSQSPublisher(client sqsAPI, queueURL string) *SQSPublisher {
	if client == nil {
		panic("notify: SQS client cannot be nil")
	}
	return &SQSPublisher{client: client, queueURL: queueURL}
}

func (p *SQSPublisher) Name() string { return "sqs" }

func (p *SQSPublisher) Publish(ctx context.Context, n Notification) error {
	if p.queueURL == "" {
		return fmt.Errorf("%w: SQS queue URL is empty", ErrNotConfigured)
	}
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notify: encode notification: %w", err)
	}
	if _, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	}); err != nil {
		return fmt.Errorf("notify: failed to send SQS message: %w", err)
	}
	return nil
}
