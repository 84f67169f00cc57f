package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message is the queue body wrapping one event.
type Message struct {
	ID        uuid.UUID       `json:"id"`
	Type      string          `json:"type"`
	RunID     string          `json:"run_id"`
	EmittedAt time.Time       `json:"emitted_at"`
	Data      json.RawMessage `json:"data"`
}

// messageSpace namespaces message ids.
var messageSpace = uuid.MustParse("5b0c7f7e-3f1a-4c55-9a52-1d0f4a2e6c11")

// Encode wraps evt for the queue. The id is derived from the run and event
// type, so a retried publish of the same event carries the same id.
func Encode(evt Event, at time.Time) (Message, error) {
	if evt == nil {
		return Message{}, errors.New("events: nil event")
	}
	typ, run := evt.EventType(), evt.RunID()
	if typ == "" || run == "" {
		return Message{}, fmt.Errorf("events: event %T lacks type or run id", evt)
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return Message{}, fmt.Errorf("events: marshal %s: %w", typ, err)
	}
	return Message{
		ID:        uuid.NewSHA1(messageSpace, []byte(run+"/"+typ)),
		Type:      typ,
		RunID:     run,
		EmittedAt: at.UTC(),
		Data:      data,
	}, nil
}

// Decode parses a queue body.
func Decode(body []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return Message{}, fmt.Errorf("events: decode message: %w", err)
	}
	if m.Type == "" || len(m.Data) == 0 {
		return Message{}, errors.New("events: message without type or data")
	}
	return m, nil
}

// ScanCompleted unpacks a scanner.scan.completed.v1 message.
func (m Message) ScanCompleted() (ScanCompletedV1, error) {
	var evt ScanCompletedV1
	if m.Type != evt.EventType() {
		return evt, fmt.Errorf("events: message is %s, not %s", m.Type, evt.EventType())
	}
	if err := json.Unmarshal(m.Data, &evt); err != nil {
		return evt, fmt.Errorf("events: decode %s: %w", m.Type, err)
	}
	return evt, nil
}
