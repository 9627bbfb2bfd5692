package chat

import (
	"errors"
	"time"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat message as persisted by the store.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Provider       string    `json:"provider,omitempty"`
	Tokens         int       `json:"tokens"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Conversation is the transient view of a conversation the gateway needs
// to build broadcast payloads. The store owns the authoritative copy.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewMessage constructs a Message without an id; the store validates it
// and assigns the id and timestamp on append.
func NewMessage(conversationID string, role Role, content string) Message {
	return Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	}
}

// Validate checks the fields a store requires before an append.
func (m Message) Validate() error {
	if m.ConversationID == "" {
		return ErrInvalidConversationID
	}
	if m.Role != RoleUser && m.Role != RoleAssistant {
		return ErrInvalidRole
	}
	if m.Content == "" {
		return ErrEmptyContent
	}
	return nil
}

var (
	ErrInvalidConversationID = errors.New("conversation id is required")
	ErrInvalidRole           = errors.New("role must be user or assistant")
	ErrEmptyContent          = errors.New("message content is required")
)
