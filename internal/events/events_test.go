package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/spa-availability/pkg/logging"
)

type runlessEvent struct{}

func (runlessEvent) EventType() string { return "scanner.test.v1" }
func (runlessEvent) RunID() string     { return "" }

func TestEncodeDecode(t *testing.T) {
	at := time.Date(2025, 11, 20, 10, 0, 0, 0, time.FixedZone("EST", -5*3600))
	evt := ScanCompletedV1{Run: "run-1", MD5: "abc", SlotCount: 3, Changed: true}

	msg, err := Encode(evt, at)
	require.NoError(t, err)
	assert.Equal(t, "scanner.scan.completed.v1", msg.Type)
	assert.Equal(t, "run-1", msg.RunID)
	assert.Equal(t, time.UTC, msg.EmittedAt.Location())

	again, err := Encode(evt, at.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, msg.ID, again.ID, "same run and type share an id")

	other, err := Encode(ScanCompletedV1{Run: "run-2"}, at)
	require.NoError(t, err)
	assert.NotEqual(t, msg.ID, other.ID)

	body, err := json.Marshal(msg)
	require.NoError(t, err)
	decoded, err := Decode(body)
	require.NoError(t, err)
	got, err := decoded.ScanCompleted()
	require.NoError(t, err)
	assert.Equal(t, evt, got)
}

func TestEncodeRejectsIncompleteEvents(t *testing.T) {
	_, err := Encode(nil, time.Now())
	assert.Error(t, err)
	_, err = Encode(runlessEvent{}, time.Now())
	assert.Error(t, err)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte("not json"))
	assert.Error(t, err)
	_, err = Decode([]byte(`{"id":"9a20d7d1-bf6a-4d33-bd55-5d25a816f1a8"}`))
	assert.Error(t, err)

	_, err = Message{Type: "scanner.other.v1", Data: []byte("{}")}.ScanCompleted()
	assert.Error(t, err)
}

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func TestSQSPublisher(t *testing.T) {
	client := &fakeSQS{}
	pub := NewSQSPublisher(client, "https://sqs.local/queue/scan-events", logging.Discard())

	require.NoError(t, pub.Publish(context.Background(), ScanCompletedV1{Run: "run-1"}))
	require.Len(t, client.inputs, 1)
	in := client.inputs[0]
	assert.Equal(t, "https://sqs.local/queue/scan-events", aws.ToString(in.QueueUrl))
	assert.Nil(t, in.MessageGroupId)

	msg, err := Decode([]byte(aws.ToString(in.MessageBody)))
	require.NoError(t, err)
	assert.Equal(t, "run-1", msg.RunID)
	assert.Equal(t, msg.Type, aws.ToString(in.MessageAttributes["event_type"].StringValue))
	assert.Equal(t, "run-1", aws.ToString(in.MessageAttributes["run_id"].StringValue))
}

func TestSQSPublisherFIFO(t *testing.T) {
	client := &fakeSQS{}
	pub := NewSQSPublisher(client, "https://sqs.local/queue/scan-events.fifo", logging.Discard())

	require.NoError(t, pub.Publish(context.Background(), ScanCompletedV1{Run: "run-1"}))
	in := client.inputs[0]
	assert.Equal(t, fifoGroup, aws.ToString(in.MessageGroupId))

	msg, err := Decode([]byte(aws.ToString(in.MessageBody)))
	require.NoError(t, err)
	assert.Equal(t, msg.ID.String(), aws.ToString(in.MessageDeduplicationId))
}

func TestSQSPublisherError(t *testing.T) {
	pub := NewSQSPublisher(&fakeSQS{err: errors.New("throttled")}, "q", logging.Discard())
	assert.Error(t, pub.Publish(context.Background(), ScanCompletedV1{Run: "x"}))
	assert.Error(t, pub.Publish(context.Background(), runlessEvent{}))
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), ScanCompletedV1{}))
}
