package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// ExpenseCreatedMessage announces a stored expense. Consumers load the full
// record from the store by ID.
type ExpenseCreatedMessage struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

var errInvalidMessage = errors.New("expense message without id")

func NewExpenseCreatedMessage(id, userID int64) *ExpenseCreatedMessage {
	return &ExpenseCreatedMessage{
		ID:        id,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
}

func (m *ExpenseCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseCreatedMessageFromJSON decodes a message body and rejects bodies
// that do not identify an expense.
func ExpenseCreatedMessageFromJSON(data []byte) (*ExpenseCreatedMessage, error) {
	var msg ExpenseCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID <= 0 {
		return nil, errInvalidMessage
	}
	return &msg, nil
}
