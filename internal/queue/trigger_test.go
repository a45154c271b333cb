package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skywatch/internal/types"
)

// mockSQS captures SendMessage inputs and optionally fails.
type mockSQS struct {
	inputs  []*sqs.SendMessageInput
	sendErr error
}

func (m *mockSQS) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.inputs = append(m.inputs, params)
	return &sqs.SendMessageOutput{}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatch_SendsSerializedMessage(t *testing.T) {
	mock := &mockSQS{}
	trigger := NewDispatchTrigger(mock, "https://sqs.test/dispatch", discardLogger())

	msg := types.DispatchMessage{
		MessageID:   "msg-1",
		TraceID:     "trace-1",
		UserID:      "user-1",
		AlertType:   types.AlertTypeAurora,
		DedupKey:    "kp6",
		Title:       "Aurora alert",
		Body:        "Kp 6.2 observed",
		Score:       88,
		TriggeredAt: time.Date(2026, 3, 14, 21, 0, 0, 0, time.UTC),
	}

	require.NoError(t, trigger.Dispatch(t.Context(), msg))
	require.Len(t, mock.inputs, 1)

	input := mock.inputs[0]
	assert.Equal(t, "https://sqs.test/dispatch", *input.QueueUrl)

	attr, ok := input.MessageAttributes["alert_type"]
	require.True(t, ok, "alert_type attribute must be set for consumer filtering")
	assert.Equal(t, "String", *attr.DataType)
	assert.Equal(t, "aurora", *attr.StringValue)

	var decoded types.DispatchMessage
	require.NoError(t, json.Unmarshal([]byte(*input.MessageBody), &decoded))
	assert.Equal(t, msg, decoded)
}

func TestDispatch_FillsMissingMessageID(t *testing.T) {
	mock := &mockSQS{}
	trigger := NewDispatchTrigger(mock, "https://sqs.test/dispatch", discardLogger())

	msg := types.DispatchMessage{
		UserID:    "user-1",
		AlertType: types.AlertTypeConditions,
	}
	require.NoError(t, trigger.Dispatch(t.Context(), msg))
	require.Len(t, mock.inputs, 1)

	var decoded types.DispatchMessage
	require.NoError(t, json.Unmarshal([]byte(*mock.inputs[0].MessageBody), &decoded))
	assert.NotEmpty(t, decoded.MessageID)
}

func TestDispatch_WrapsSendFailure(t *testing.T) {
	cause := errors.New("queue does not exist")
	trigger := NewDispatchTrigger(&mockSQS{sendErr: cause}, "https://sqs.test/dispatch", discardLogger())

	err := trigger.Dispatch(t.Context(), types.DispatchMessage{UserID: "user-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "https://sqs.test/dispatch")
}
