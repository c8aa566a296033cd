package queue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warwicklearningsystems/local-reminders/internal/config"
	"github.com/warwicklearningsystems/local-reminders/internal/types"
)

// mockSQS is an in-memory mock of SQSSender.
type mockSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
	calls  int
}

func (m *mockSQS) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	m.inputs = append(m.inputs, params)
	return &sqs.SendMessageOutput{}, nil
}

func testLogger() types.Logger {
	return types.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestPublisher(t *testing.T, client *mockSQS, threshold int) *Publisher {
	t.Helper()
	p, err := NewPublisher(client, config.QueueConfig{
		MessageQueueURL:   "https://sqs.eu-west-2.amazonaws.com/123/reminders",
		CompressThreshold: threshold,
	}, testLogger())
	require.NoError(t, err)
	return p
}

func testMessage() types.ReminderMessage {
	return types.ReminderMessage{
		ID:        "msg-1",
		EventID:   7,
		Category:  types.CategoryCourse,
		EventName: "deadline",
		Recipient: types.User{ID: 2, Email: "u@lms.test"},
	}
}

func TestSend_PublishesJSONBody(t *testing.T) {
	client := &mockSQS{}
	p := newTestPublisher(t, client, 1<<17)

	ok, err := p.Send(context.Background(), testMessage())

	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, client.inputs, 1)

	var decoded types.ReminderMessage
	require.NoError(t, json.Unmarshal([]byte(*client.inputs[0].MessageBody), &decoded))
	assert.Equal(t, "msg-1", decoded.ID)
	assert.Empty(t, client.inputs[0].MessageAttributes)
}

func TestSend_CompressesOversizeBody(t *testing.T) {
	client := &mockSQS{}
	p := newTestPublisher(t, client, 64)

	msg := testMessage()
	msg.EventName = strings.Repeat("very long event name ", 50)

	ok, err := p.Send(context.Background(), msg)

	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, client.inputs, 1)

	attr, present := client.inputs[0].MessageAttributes[contentEncodingAttr]
	require.True(t, present)
	assert.Equal(t, "zstd+base64", *attr.StringValue)

	compressed, err := base64.StdEncoding.DecodeString(*client.inputs[0].MessageBody)
	require.NoError(t, err)
	decoder, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer decoder.Close()
	raw, err := decoder.DecodeAll(compressed, nil)
	require.NoError(t, err)

	var decoded types.ReminderMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, msg.EventName, decoded.EventName)
}

func TestSend_FailureReturnsFalse(t *testing.T) {
	client := &mockSQS{err: errors.New("queue unavailable")}
	p := newTestPublisher(t, client, 1<<17)

	ok, err := p.Send(context.Background(), testMessage())

	require.Error(t, err)
	assert.False(t, ok)
}

func TestSend_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	client := &mockSQS{err: errors.New("queue unavailable")}
	p := newTestPublisher(t, client, 1<<17)

	for i := 0; i < 6; i++ {
		_, err := p.Send(context.Background(), testMessage())
		require.Error(t, err)
	}
	callsBeforeOpen := client.calls

	// The breaker is open now; sends fail without reaching the client.
	_, err := p.Send(context.Background(), testMessage())
	require.Error(t, err)
	assert.Equal(t, callsBeforeOpen, client.calls)
}
