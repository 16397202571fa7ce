package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"finview/internal/core"
)

// TransactionCreatedMessage announces a record accepted by the create flow.
// CreateDate inside Transaction is already in the backend wire format
// (YYYY-MM-DDTHH:mm:ss±HH:MM).
type TransactionCreatedMessage struct {
	MessageID   string           `json:"messageId"`
	Kind        core.Kind        `json:"kind"`
	Transaction core.Transaction `json:"transaction"`
	Timestamp   time.Time        `json:"timestamp"`
}

var (
	ErrMissingMessageID = errors.New("message id is required")
	ErrInvalidKind      = errors.New("message kind must be expense or income")
	ErrMissingTxID      = errors.New("transaction id is required")
)

// NewTransactionCreatedMessage stamps tx with a fresh message id.
func NewTransactionCreatedMessage(kind core.Kind, tx core.Transaction) *TransactionCreatedMessage {
	return &TransactionCreatedMessage{
		MessageID:   uuid.NewString(),
		Kind:        kind,
		Transaction: tx,
		Timestamp:   time.Now().UTC(),
	}
}

// Validate checks the fields a consumer relies on.
func (m *TransactionCreatedMessage) Validate() error {
	if m.MessageID == "" {
		return ErrMissingMessageID
	}
	if !m.Kind.Valid() {
		return ErrInvalidKind
	}
	if m.Transaction.ID == "" {
		return ErrMissingTxID
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *TransactionCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionCreatedMessageFromJSON decodes and validates a message body.
func TransactionCreatedMessageFromJSON(data []byte) (*TransactionCreatedMessage, error) {
	var msg TransactionCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
