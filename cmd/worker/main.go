// Command worker long-polls the enrichment queue and extracts lease terms
// for documents uploaded while a queue was configured.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"golang.org/x/sync/semaphore"

	"leaselens-backend/internal/bootstrap"
	"leaselens-backend/internal/shared/config"
	"leaselens-backend/internal/shared/metrics"
	"leaselens-backend/internal/shared/telemetry"
	"leaselens-backend/internal/workerproc"
)

const (
	sqsRegion                 = "us-east-1"
	defaultVisibilitySeconds  = 300
	defaultWorkerConcurrency  = 4
	defaultShutdownTimeoutSec = 30
)

func main() {
	cfg := config.Load()

	queueURL := strings.TrimSpace(cfg.QueueURL)
	if queueURL == "" {
		log.Fatal("LL_SQS_QUEUE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	visibilitySeconds := envInt("LL_SQS_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds)
	concurrency := envInt("LL_WORKER_CONCURRENCY", defaultWorkerConcurrency)
	shutdownTimeout := time.Duration(envInt("LL_SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second

	region := cfg.AWSRegion
	if region == "" {
		region = sqsRegion
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	var sqsClient sqsAPI = sqs.NewFromConfig(awsCfg)

	// The worker runs enrichment itself, so it must not enqueue.
	cfg.QueueURL = ""
	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	enricher := workerproc.Enricher(app.DocumentsService)

	concurrency = max(1, concurrency)
	log.Printf("worker started queue=%s concurrency=%d visibility=%ds", queueURL, concurrency, visibilitySeconds)
	poll(ctx, sqsClient, queueURL, enricher, concurrency, int32(visibilitySeconds), shutdownTimeout)
}

// poll receives batches until ctx is cancelled, running at most concurrency
// messages at once, then waits up to shutdownTimeout for in-flight work.
func poll(ctx context.Context, client sqsAPI, queueURL string, enricher workerproc.Enricher, concurrency int, visibilitySeconds int32, shutdownTimeout time.Duration) {
	sem := semaphore.NewWeighted(int64(concurrency))

	for ctx.Err() == nil {
		resp, err := client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   visibilitySeconds,
			MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{
				sqstypes.MessageSystemAttributeNameApproximateReceiveCount,
			},
		})
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Printf("receive message: %v", err)
			continue
		}

		for _, msg := range resp.Messages {
			if err := sem.Acquire(ctx, 1); err != nil {
				break
			}
			metrics.IncEnrichmentJobsReceived()
			go func(m sqstypes.Message) {
				defer sem.Release(1)
				// In-flight jobs finish even after shutdown is requested.
				handleMessage(context.WithoutCancel(ctx), client, queueURL, enricher, m)
			}(msg)
		}
	}

	log.Printf("shutdown requested, waiting up to %s for in-flight jobs", shutdownTimeout)
	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sem.Acquire(drainCtx, int64(concurrency)); err != nil {
		log.Printf("shutdown timeout reached; exiting with in-flight jobs")
	}
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

func handleMessage(ctx context.Context, client sqsAPI, queueURL string, enricher workerproc.Enricher, msg sqstypes.Message) {
	body := aws.ToString(msg.Body)
	decoded, meta, err := workerproc.ParseMessage(body)
	if err != nil {
		fields := baseFields(msg, decoded.DocumentID, decoded.RequestID)
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		event := "worker.enrich.decode_failed"
		var (
			empty   workerproc.ErrEmptyBody
			missing workerproc.ErrMissingDocumentID
			decode  workerproc.ErrDecode
		)
		switch {
		case errors.As(err, &empty):
			event = "worker.enrich.empty_body"
		case errors.As(err, &missing):
			event = "worker.enrich.missing_id"
		case errors.As(err, &decode):
			fields["error"] = decode.Err.Error()
		default:
			fields["error"] = err.Error()
		}
		telemetry.Error(event, fields)
		if deleteMessage(ctx, client, queueURL, msg, decoded.DocumentID, decoded.RequestID) {
			metrics.IncEnrichmentJobsDeletedUnrecoverable()
		}
		return
	}

	telemetry.Info("worker.enrich.received", baseFields(msg, decoded.DocumentID, decoded.RequestID))

	if err := workerproc.Process(ctx, enricher, decoded); err != nil {
		fields := baseFields(msg, decoded.DocumentID, decoded.RequestID)
		fields["error"] = err.Error()
		if workerproc.Unrecoverable(err) {
			telemetry.Error("worker.enrich.document_gone", fields)
			if deleteMessage(ctx, client, queueURL, msg, decoded.DocumentID, decoded.RequestID) {
				metrics.IncEnrichmentJobsDeletedUnrecoverable()
			}
			return
		}
		telemetry.Error("worker.enrich.failed", fields)
		metrics.IncEnrichmentJobsFailed()
		return
	}

	if deleteMessage(ctx, client, queueURL, msg, decoded.DocumentID, decoded.RequestID) {
		fields := baseFields(msg, decoded.DocumentID, decoded.RequestID)
		fields["queue_age_ms"] = decoded.Age(time.Now()).Milliseconds()
		telemetry.Info("worker.enrich.completed", fields)
		metrics.IncEnrichmentJobsCompleted()
	}
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, documentID, requestID string) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg, documentID, requestID)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.enrich.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg, documentID, requestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.enrich.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message, documentID, requestID string) map[string]any {
	fields := map[string]any{
		"document_id":    documentID,
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if strings.TrimSpace(requestID) != "" {
		fields["request_id"] = requestID
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	if msg.Attributes == nil {
		return 0
	}
	raw := msg.Attributes["ApproximateReceiveCount"]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
