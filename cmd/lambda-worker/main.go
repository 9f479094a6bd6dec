// Command lambda-worker runs queued lease-term extraction from an SQS event
// source mapping.
package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"leaselens-backend/internal/bootstrap"
	"leaselens-backend/internal/shared/config"
	"leaselens-backend/internal/shared/metrics"
	"leaselens-backend/internal/shared/telemetry"
	"leaselens-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	enricher workerproc.Enricher
)

func initApp() {
	cfg := config.Load()
	// Enrichment runs here, so the service must not enqueue again.
	cfg.QueueURL = ""
	built, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	enricher = built.DocumentsService
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return processBatch(ctx, enricher, event), nil
}

// processBatch reports only retryable failures so malformed messages and
// deleted documents are not redelivered.
func processBatch(ctx context.Context, enricher workerproc.Enricher, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		metrics.IncEnrichmentJobsReceived()
		err := workerproc.HandleMessage(ctx, enricher, record.Body)
		switch {
		case err == nil:
			metrics.IncEnrichmentJobsCompleted()
		case workerproc.Unrecoverable(err):
			metrics.IncEnrichmentJobsDeletedUnrecoverable()
			telemetry.Error("worker.enrich.dropped", map[string]any{
				"sqs_message_id": record.MessageId,
				"error":          err.Error(),
			})
		default:
			metrics.IncEnrichmentJobsFailed()
			telemetry.Error("worker.enrich.failed", map[string]any{
				"sqs_message_id": record.MessageId,
				"error":          err.Error(),
			})
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
