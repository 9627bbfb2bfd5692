package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store abstracts persistence for messages and conversations. AppendMessage
// takes the full message so generation metadata (provider, tokens) is stored
// alongside assistant replies; the store assigns the id and timestamp.
type Store interface {
	AppendMessage(ctx context.Context, msg Message) (Message, error)
	TouchConversation(ctx context.Context, conversationID string) (Conversation, error)
	History(ctx context.Context, conversationID string, limit int) ([]Message, error)
}

// NewInMemoryStore constructs an in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		messages:      make(map[string][]Message),
		conversations: make(map[string]Conversation),
		now:           time.Now,
	}
}

// InMemoryStore keeps messages and conversations in memory.
type InMemoryStore struct {
	mu            sync.Mutex
	messages      map[string][]Message
	conversations map[string]Conversation
	now           func() time.Time
}

func (s *InMemoryStore) AppendMessage(ctx context.Context, msg Message) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	msg.ID = uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()

	msg.CreatedAt = s.now()
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], msg)
	if _, ok := s.conversations[msg.ConversationID]; !ok {
		s.conversations[msg.ConversationID] = Conversation{
			ID:        msg.ConversationID,
			UpdatedAt: msg.CreatedAt,
		}
	}
	return msg, nil
}

func (s *InMemoryStore) TouchConversation(ctx context.Context, conversationID string) (Conversation, error) {
	if err := ctx.Err(); err != nil {
		return Conversation{}, err
	}
	if conversationID == "" {
		return Conversation{}, ErrInvalidConversationID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		conv = Conversation{ID: conversationID}
	}
	conv.UpdatedAt = s.now()
	s.conversations[conversationID] = conv
	return conv, nil
}

func (s *InMemoryStore) History(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Messages returns all stored messages for a conversation (for testing/inspection).
func (s *InMemoryStore) Messages(conversationID string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages[conversationID]))
	copy(out, s.messages[conversationID])
	return out
}
