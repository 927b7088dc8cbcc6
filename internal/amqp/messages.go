package amqp

import (
	"encoding/json"
	"time"
)

// ExecutionEventMessage announces a lifecycle transition for one month.
// Consumers re-read state from the database; the message carries only
// the event name and the month it concerns.
type ExecutionEventMessage struct {
	Event     string    `json:"event"`
	Month     string    `json:"month"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExecutionEventMessage(event, month string) *ExecutionEventMessage {
	return &ExecutionEventMessage{
		Event:     event,
		Month:     month,
		Timestamp: time.Now(),
	}
}

func (m *ExecutionEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExecutionEventMessageFromJSON(data []byte) (*ExecutionEventMessage, error) {
	var msg ExecutionEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// LedgerChangedMessage signals that transactions or allocations were
// written, so monthly plans should be recomputed for the given month.
type LedgerChangedMessage struct {
	Month     string    `json:"month"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerChangedMessage(month string) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		Month:     month,
		Timestamp: time.Now(),
	}
}

func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
