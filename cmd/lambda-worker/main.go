package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jlorenzo681/documind/internal/bootstrap"
	"github.com/jlorenzo681/documind/internal/shared/config"
	"github.com/jlorenzo681/documind/internal/shared/metrics"
	"github.com/jlorenzo681/documind/internal/shared/telemetry"
	"github.com/jlorenzo681/documind/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg := config.Load()
	built, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	app = built
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

	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		metrics.IncWorkerMessage("received")
		err := workerproc.HandleMessage(ctx, app.Runner, record.Body)
		switch {
		case err == nil:
			metrics.IncWorkerMessage("completed")
		case workerproc.Unrecoverable(err):
			// Reported as success so the record is removed from the queue.
			telemetry.Error("worker.task.unrecoverable", map[string]any{"sqs_message_id": record.MessageId, "error": err.Error()})
			metrics.IncWorkerMessage("deleted_unrecoverable")
		default:
			telemetry.Error("worker.task.failed", map[string]any{"sqs_message_id": record.MessageId, "error": err.Error()})
			metrics.IncWorkerMessage("failed")
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}

	return events.SQSEventResponse{BatchItemFailures: failures}, nil
}

func main() {
	lambda.Start(handler)
}
