package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Ledger operations carried by LedgerChangedMessage.
const (
	OpAppend = "append"
	OpDelete = "delete"
)

// LedgerChangedMessage announces a committed ledger mutation. It carries
// only identifiers; consumers reload the ledger from the shared slot.
type LedgerChangedMessage struct {
	Op            string    `json:"op"`
	TransactionID string    `json:"transactionId"`
	Count         int       `json:"count"`
	HeadID        string    `json:"headId,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewLedgerChangedMessage creates a message stamped with the current time.
func NewLedgerChangedMessage(op, transactionID string, count int, headID string) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		Op:            op,
		TransactionID: transactionID,
		Count:         count,
		HeadID:        headID,
		Timestamp:     time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangedMessageFromJSON decodes and checks a message body.
func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Op != OpAppend && msg.Op != OpDelete {
		return nil, fmt.Errorf("unknown ledger op %q", msg.Op)
	}
	if msg.TransactionID == "" {
		return nil, fmt.Errorf("ledger message without transaction id")
	}
	return &msg, nil
}
