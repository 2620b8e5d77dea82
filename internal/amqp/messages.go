package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// TransactionEvaluationMessage asks the worker to evaluate one transaction
// write. The worker loads the transaction itself; Version lets it skip
// messages superseded by a later update.
type TransactionEvaluationMessage struct {
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Version       int64     `json:"version"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionEvaluationMessage(transactionID, userID string, version int64) *TransactionEvaluationMessage {
	return &TransactionEvaluationMessage{
		TransactionID: transactionID,
		UserID:        userID,
		Version:       version,
		Timestamp:     time.Now().UTC(),
	}
}

func (m *TransactionEvaluationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEvaluationMessageFromJSON decodes and validates a message body.
func TransactionEvaluationMessageFromJSON(data []byte) (*TransactionEvaluationMessage, error) {
	var msg TransactionEvaluationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.TransactionID == "" || msg.UserID == "" {
		return nil, errors.New("message missing transaction or user id")
	}
	if msg.Version < 1 {
		return nil, errors.New("message version must be positive")
	}
	return &msg, nil
}
