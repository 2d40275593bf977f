package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Change operations carried by LedgerChangeMessage.
const (
	ChangeCreate = "create"
	ChangeUpdate = "update"
	ChangeDelete = "delete"
)

// LedgerChangeMessage announces that the transaction store was mutated.
// Consumers refetch whatever they need; the message carries no amounts.
type LedgerChangeMessage struct {
	Operation string    `json:"operation"`
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerChangeMessage stamps a change message with the current time.
func NewLedgerChangeMessage(operation string, id int64) *LedgerChangeMessage {
	return &LedgerChangeMessage{
		Operation: operation,
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangeMessageFromJSON decodes and validates a change message.
func LedgerChangeMessageFromJSON(data []byte) (*LedgerChangeMessage, error) {
	var msg LedgerChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Operation {
	case ChangeCreate, ChangeUpdate, ChangeDelete:
	default:
		return nil, fmt.Errorf("unknown ledger change operation %q", msg.Operation)
	}
	return &msg, nil
}
