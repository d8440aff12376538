package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/wolfman30/medtrack/pkg/logging"
)

type fakeSendGrid struct {
	sent   []*mail.SGMailV3
	status int
	err    error
}

func (f *fakeSendGrid) SendWithContext(_ context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.sent = append(f.sent, email)
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status}, nil
}

type fakeSES struct {
	inputs []*sesv2.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
}

type recordingSender struct {
	messages []EmailMessage
}

func (r *recordingSender) Send(_ context.Context, msg EmailMessage) error {
	r.messages = append(r.messages, msg)
	return nil
}

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{FromEmail: "clinic@example.com"}, nil)
	if sender != nil {
		t.Error("expected nil sender when API key is empty")
	}
}

func TestNewSendGridSender_DefaultFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{APIKey: "test-key", FromEmail: "clinic@example.com"}, nil)
	if sender == nil {
		t.Fatal("expected non-nil sender")
	}
	if sender.fromName != DefaultFromName {
		t.Errorf("expected default from name %q, got %q", DefaultFromName, sender.fromName)
	}
}

func TestSendGridSender_Send(t *testing.T) {
	fake := &fakeSendGrid{status: 202}
	sender := &SendGridSender{client: fake, fromEmail: "clinic@example.com", fromName: "MedTrack", logger: logging.Discard()}

	err := sender.Send(context.Background(), EmailMessage{To: "pat@example.com", ToName: "Pat", Subject: "New Appointment", Body: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(fake.sent))
	}
	if fake.sent[0].Subject != "New Appointment" {
		t.Errorf("unexpected subject %q", fake.sent[0].Subject)
	}
	if fake.sent[0].From.Address != "clinic@example.com" {
		t.Errorf("unexpected from %q", fake.sent[0].From.Address)
	}
}

func TestSendGridSender_Send_ErrorStatus(t *testing.T) {
	sender := &SendGridSender{client: &fakeSendGrid{status: 401}, logger: logging.Discard()}
	if err := sender.Send(context.Background(), EmailMessage{To: "pat@example.com"}); err == nil {
		t.Error("expected error for 4xx status")
	}
}

func TestSendGridSender_Send_NilClient(t *testing.T) {
	sender := &SendGridSender{}
	if err := sender.Send(context.Background(), EmailMessage{To: "pat@example.com"}); err == nil {
		t.Error("expected error when client is nil")
	}
}

func TestSESSender_Send(t *testing.T) {
	fake := &fakeSES{}
	sender := NewSESSender(fake, SESConfig{FromEmail: "clinic@example.com"}, logging.Discard())

	err := sender.Send(context.Background(), EmailMessage{To: "pat@example.com", Subject: "New Appointment", Body: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	in := fake.inputs[0]
	if got := aws.ToString(in.FromEmailAddress); got != "MedTrack <clinic@example.com>" {
		t.Errorf("unexpected from address %q", got)
	}
	if in.Destination.ToAddresses[0] != "pat@example.com" {
		t.Errorf("unexpected recipient %v", in.Destination.ToAddresses)
	}
	if in.Content.Simple.Body.Html != nil {
		t.Error("expected no HTML part")
	}
	if got := aws.ToString(in.Content.Simple.Body.Text.Data); got != "hello" {
		t.Errorf("unexpected body %q", got)
	}
}

func TestSESSender_Send_Failure(t *testing.T) {
	sender := NewSESSender(&fakeSES{err: errors.New("throttled")}, SESConfig{FromEmail: "clinic@example.com"}, logging.Discard())
	if err := sender.Send(context.Background(), EmailMessage{To: "pat@example.com"}); err == nil {
		t.Error("expected error")
	}
}

func TestSESSender_MissingFromAddress(t *testing.T) {
	sender := NewSESSender(&fakeSES{}, SESConfig{}, logging.Discard())
	err := sender.Send(context.Background(), EmailMessage{To: "pat@example.com"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestNewSESSender_NilClientPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for nil client")
		}
	}()
	NewSESSender(nil, SESConfig{}, nil)
}

func TestEmailPublisher_AddressesPatient(t *testing.T) {
	sender := &recordingSender{}
	pub := NewEmailPublisher(sender, "ses", logging.Discard())

	err := pub.Publish(context.Background(), Notification{
		Subject:      "New Appointment",
		Message:      "New appointment booked",
		PatientName:  "Pat",
		PatientEmail: "pat@example.com",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pub.Name() != "ses" {
		t.Errorf("unexpected name %q", pub.Name())
	}
	if len(sender.messages) != 1 || sender.messages[0].To != "pat@example.com" || sender.messages[0].Body != "New appointment booked" {
		t.Errorf("unexpected messages %+v", sender.messages)
	}
}

func TestEmailPublisher_SkipsWithoutRecipient(t *testing.T) {
	sender := &recordingSender{}
	pub := NewEmailPublisher(sender, "", logging.Discard())
	if err := pub.Publish(context.Background(), Notification{Subject: "New Appointment"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.messages) != 0 {
		t.Errorf("expected no email, got %d", len(sender.messages))
	}
}
