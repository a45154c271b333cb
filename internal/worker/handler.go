package worker

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"

	"skywatch/internal/types"
)

// Handle processes an SQS event where each record body is an evaluation
// batch. Lambda SQS integration uses partial batch responses: records that
// fail processing are returned in batchItemFailures so SQS can retry them.
func (e *Evaluator) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := e.processRecord(ctx, record); err != nil {
			e.logger.ErrorContext(ctx, "failed to process SQS record",
				"message_id", record.MessageId,
				"error", err.Error(),
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

func (e *Evaluator) processRecord(ctx context.Context, record events.SQSMessage) error {
	var batch types.EvalBatch
	if err := json.Unmarshal([]byte(record.Body), &batch); err != nil {
		e.logger.ErrorContext(ctx, "failed to unmarshal evaluation batch",
			"message_id", record.MessageId,
			"error", err.Error(),
		)
		// Permanent parse failure, do not retry.
		return nil
	}

	if batch.TraceID != "" {
		ctx = types.WithRequestID(ctx, batch.TraceID)
	}

	_, err := e.ProcessBatch(ctx, batch)
	return err
}
