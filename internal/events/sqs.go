package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/wolfman30/spa-availability/pkg/logging"
)

// Publisher emits events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// SQSAPI is the subset of the SQS client used by SQSPublisher.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// fifoGroup orders every scan event in a single FIFO group.
const fifoGroup = "scans"

// SQSPublisher sends messages to a standard or FIFO queue.
type SQSPublisher struct {
	client   SQSAPI
	queueURL string
	fifo     bool
	now      func() time.Time
	logger   *logging.Logger
}

func NewSQSPublisher(client SQSAPI, queueURL string, logger *logging.Logger) *SQSPublisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &SQSPublisher{
		client:   client,
		queueURL: queueURL,
		fifo:     strings.HasSuffix(queueURL, ".fifo"),
		now:      time.Now,
		logger:   logger,
	}
}

func (p *SQSPublisher) Publish(ctx context.Context, evt Event) error {
	msg, err := Encode(evt, p.now())
	if err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("events: marshal message: %w", err)
	}

	in := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(msg.Type)},
			"run_id":     {DataType: aws.String("String"), StringValue: aws.String(msg.RunID)},
		},
	}
	if p.fifo {
		in.MessageGroupId = aws.String(fifoGroup)
		in.MessageDeduplicationId = aws.String(msg.ID.String())
	}
	out, err := p.client.SendMessage(ctx, in)
	if err != nil {
		return fmt.Errorf("events: send %s: %w", msg.Type, err)
	}
	p.logger.Info("event published", "event_type", msg.Type, "run_id", msg.RunID, "sqs_message_id", aws.ToString(out.MessageId))
	return nil
}

// NopPublisher drops events; used when no queue is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
