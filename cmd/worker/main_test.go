package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"leaselens-backend/internal/documents"
	"leaselens-backend/internal/queue"
)

type fakeSQS struct {
	deleted []string
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type fakeEnricher struct {
	err error
	got []string
}

func (f *fakeEnricher) Enrich(ctx context.Context, documentID string) error {
	f.got = append(f.got, documentID)
	return f.err
}

func enrichMessage(t *testing.T, id, receipt string, msg queue.Message) sqstypes.Message {
	t.Helper()
	body, err := queue.EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return sqstypes.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String(receipt),
		Body:          aws.String(string(body)),
		Attributes:    map[string]string{"ApproximateReceiveCount": "1"},
	}
}

func TestWorkerDeletesMessageOnSuccess(t *testing.T) {
	client := &fakeSQS{}
	enricher := &fakeEnricher{}
	msg := enrichMessage(t, "m1", "r1", queue.Message{DocumentID: "doc-1", RequestID: "req-1"})

	handleMessage(context.Background(), client, "queue", enricher, msg)

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
	if len(enricher.got) != 1 || enricher.got[0] != "doc-1" {
		t.Fatalf("unexpected enrich calls: %v", enricher.got)
	}
}

func TestWorkerDoesNotDeleteOnFailure(t *testing.T) {
	client := &fakeSQS{}
	enricher := &fakeEnricher{err: errors.New("model timeout")}
	msg := enrichMessage(t, "m2", "r2", queue.Message{DocumentID: "doc-2", RequestID: "req-2"})

	handleMessage(context.Background(), client, "queue", enricher, msg)

	if len(client.deleted) != 0 {
		t.Fatalf("expected no delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesWhenDocumentGone(t *testing.T) {
	client := &fakeSQS{}
	enricher := &fakeEnricher{err: fmt.Errorf("document lookup id=doc-3: %w", documents.ErrNotFound)}
	msg := enrichMessage(t, "m3", "r3", queue.Message{DocumentID: "doc-3"})

	handleMessage(context.Background(), client, "queue", enricher, msg)

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesOnInvalidJSON(t *testing.T) {
	client := &fakeSQS{}
	enricher := &fakeEnricher{}
	msg := sqstypes.Message{
		MessageId:     aws.String("m4"),
		ReceiptHandle: aws.String("r4"),
		Body:          aws.String("{bad-json"),
	}

	handleMessage(context.Background(), client, "queue", enricher, msg)

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
	if len(enricher.got) != 0 {
		t.Fatalf("enricher should not run")
	}
}

func TestWorkerDeletesMissingDocumentID(t *testing.T) {
	client := &fakeSQS{}
	msg := enrichMessage(t, "m5", "r5", queue.Message{RequestID: "req-5"})

	handleMessage(context.Background(), client, "queue", &fakeEnricher{}, msg)

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}

func TestReceiveCount(t *testing.T) {
	if got := receiveCount(sqstypes.Message{Attributes: map[string]string{"ApproximateReceiveCount": "3"}}); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	if got := receiveCount(sqstypes.Message{}); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

type pollingSQS struct {
	mu      sync.Mutex
	batches [][]sqstypes.Message
	deleted []string
	cancel  context.CancelFunc
}

func (p *pollingSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.batches) == 0 {
		p.cancel()
		return nil, ctx.Err()
	}
	batch := p.batches[0]
	p.batches = p.batches[1:]
	return &sqs.ReceiveMessageOutput{Messages: batch}, nil
}

func (p *pollingSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type countingEnricher struct {
	mu  sync.Mutex
	ids []string
}

func (c *countingEnricher) Enrich(ctx context.Context, documentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, documentID)
	return nil
}

func TestPollDrainsInFlightJobsOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := &pollingSQS{cancel: cancel}
	var batch []sqstypes.Message
	for i := 0; i < 5; i++ {
		batch = append(batch, enrichMessage(t, fmt.Sprintf("m%d", i), fmt.Sprintf("r%d", i), queue.Message{DocumentID: fmt.Sprintf("doc-%d", i)}))
	}
	client.batches = [][]sqstypes.Message{batch}
	enricher := &countingEnricher{}

	poll(ctx, client, "queue", enricher, 2, 300, 5*time.Second)

	if len(enricher.ids) != 5 {
		t.Fatalf("expected 5 enrichments, got %d", len(enricher.ids))
	}
	if len(client.deleted) != 5 {
		t.Fatalf("expected 5 deletes, got %v", client.deleted)
	}
}
