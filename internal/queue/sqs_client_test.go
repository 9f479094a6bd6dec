package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type fakeSender struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSender) SendMessage(ctx context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func TestSQSClientSend(t *testing.T) {
	fake := &fakeSender{}
	client := NewSQSClientWithAPI(fake, "https://sqs.example/queue")

	if err := client.Send(context.Background(), Message{DocumentID: "doc-1", Version: MessageVersion}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(fake.inputs) != 1 {
		t.Fatalf("expected one send, got %d", len(fake.inputs))
	}
	in := fake.inputs[0]
	if aws.ToString(in.QueueUrl) != "https://sqs.example/queue" {
		t.Fatalf("unexpected queue url %q", aws.ToString(in.QueueUrl))
	}
	if attr, ok := in.MessageAttributes["documentId"]; !ok || aws.ToString(attr.StringValue) != "doc-1" {
		t.Fatalf("expected documentId attribute, got %+v", in.MessageAttributes)
	}
	msg, err := DecodeMessage([]byte(aws.ToString(in.MessageBody)))
	if err != nil || msg.DocumentID != "doc-1" {
		t.Fatalf("unexpected body %q (%v)", aws.ToString(in.MessageBody), err)
	}
}

func TestSQSClientSendWrapsError(t *testing.T) {
	sentinel := errors.New("throttled")
	client := NewSQSClientWithAPI(&fakeSender{err: sentinel}, "q")
	if err := client.Send(context.Background(), Message{}); !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
}

func TestNewSQSClientRequiresURL(t *testing.T) {
	if _, err := NewSQSClient(context.Background(), " ", ""); err == nil {
		t.Fatalf("expected error for empty queue url")
	}
}
