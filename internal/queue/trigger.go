// Package queue provides the SQS-based producer that hands allowed alerts to
// downstream delivery workers.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"skywatch/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// DispatchTrigger serializes DispatchMessages and sends them to the dispatch
// queue consumed by the delivery workers (Telegram/WhatsApp formatting lives
// there, not here).
type DispatchTrigger struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewDispatchTrigger creates a DispatchTrigger for the given queue URL.
func NewDispatchTrigger(client SQSSender, queueURL string, logger *slog.Logger) *DispatchTrigger {
	return &DispatchTrigger{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
	}
}

// Dispatch enqueues one alert for delivery. A zero MessageID is filled in
// with a fresh UUID so downstream consumers can deduplicate redeliveries.
func (t *DispatchTrigger) Dispatch(ctx context.Context, msg types.DispatchMessage) error {
	if msg.MessageID == "" {
		msg.MessageID = uuid.New().String()
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal DispatchMessage: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(t.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"alert_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(msg.AlertType)),
			},
		},
	}

	if _, err := t.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue: failed to send DispatchMessage to %s: %w", t.queueURL, err)
	}

	t.logger.InfoContext(ctx, "dispatch message sent",
		"queue_url", t.queueURL,
		"message_id", msg.MessageID,
		"trace_id", msg.TraceID,
		"user_id", msg.UserID,
		"alert_type", string(msg.AlertType),
		"dedup_key", msg.DedupKey,
	)
	return nil
}
