// Package queue implements the hand-off to the messaging subsystem: rendered
// reminder payloads are published to an SQS queue that the platform's mail
// pipeline consumes. The publisher carries a circuit breaker so a queue
// outage fails sends fast instead of stalling the whole cycle, and
// compresses oversize bodies before enqueueing.
package queue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/klauspost/compress/zstd"
	"github.com/sony/gobreaker/v2"

	"github.com/warwicklearningsystems/local-reminders/internal/config"
	"github.com/warwicklearningsystems/local-reminders/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// contentEncodingAttr names the message attribute carrying the body
// encoding so consumers know whether to decompress.
const contentEncodingAttr = "content_encoding"

// Publisher sends reminder messages to the messaging queue. It implements
// reminders.Transport.
type Publisher struct {
	client            SQSSender
	queueURL          string
	compressThreshold int
	breaker           *gobreaker.CircuitBreaker[*sqs.SendMessageOutput]
	encoder           *zstd.Encoder
	logger            types.Logger
}

// NewPublisher creates a Publisher targeting the configured queue. The
// breaker opens after more than five consecutive failures and probes again
// after thirty seconds.
func NewPublisher(client SQSSender, cfg config.QueueConfig, logger types.Logger) (*Publisher, error) {
	cb := gobreaker.NewCircuitBreaker[*sqs.SendMessageOutput](gobreaker.Settings{
		Name:        "reminder-queue",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}

	return &Publisher{
		client:            client,
		queueURL:          cfg.MessageQueueURL,
		compressThreshold: cfg.CompressThreshold,
		breaker:           cb,
		encoder:           encoder,
		logger:            logger,
	}, nil
}

// Send publishes one reminder message. The boolean mirrors the transport
// contract: false means the message was not accepted, whether by refusal or
// by error; the caller counts both identically.
func (p *Publisher) Send(ctx context.Context, msg types.ReminderMessage) (bool, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return false, fmt.Errorf("reminder publisher: failed to marshal message: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	}

	if p.compressThreshold > 0 && len(body) > p.compressThreshold {
		compressed := p.encoder.EncodeAll(body, nil)
		input.MessageBody = aws.String(base64.StdEncoding.EncodeToString(compressed))
		input.MessageAttributes = map[string]sqstypes.MessageAttributeValue{
			contentEncodingAttr: {
				DataType:    aws.String("String"),
				StringValue: aws.String("zstd+base64"),
			},
		}
		p.logger.Info("reminder body compressed",
			"message_id", msg.ID,
			"raw_bytes", len(body),
			"compressed_bytes", len(compressed),
		)
	}

	_, err = p.breaker.Execute(func() (*sqs.SendMessageOutput, error) {
		return p.client.SendMessage(ctx, input)
	})
	if err != nil {
		return false, fmt.Errorf("reminder publisher: failed to send message to %s: %w", p.queueURL, err)
	}

	return true, nil
}
