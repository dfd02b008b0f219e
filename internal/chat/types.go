// Package chat defines the core conversation types shared by the
// controller, the store and the UI.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Status reflects the perceived availability of the remote webhook.
type Status string

const (
	StatusOnline  Status = "Online"
	StatusOffline Status = "Offline"
)

// Message is a single conversation entry. Messages are append-only and
// never mutated after creation; list order is insertion order.
type Message struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"` // display-only, not used for ordering
	IsError   bool   `json:"isError,omitempty"`
}

// NewMessage creates a message stamped with the current wall-clock time.
func NewMessage(role Role, text string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Text:      text,
		Timestamp: time.Now().Format("15:04"),
	}
}

// NewErrorMessage creates an assistant message flagged as an error,
// used for failed webhook calls.
func NewErrorMessage(text string) Message {
	m := NewMessage(RoleAssistant, text)
	m.IsError = true
	return m
}
