package gateway

import (
	"encoding/json"
	"errors"

	"parley/internal/chat"
)

// Client to server frame types.
const (
	FrameAuthenticate     = "authenticate"
	FrameJoinConversation = "join_conversation"
	FrameSendMessage      = "send_message"
	FramePing             = "ping"
)

// Server to client event types.
const (
	EventConnected           = "connected"
	EventAuthenticated       = "authenticated"
	EventConversationJoined  = "conversation_joined"
	EventTypingStart         = "typing_start"
	EventTypingStop          = "typing_stop"
	EventMessageReceived     = "message_received"
	EventConversationCreated = "conversation_created"
	EventConversationUpdated = "conversation_updated"
	EventConversationDeleted = "conversation_deleted"
	EventError               = "error"
	EventPong                = "pong"
)

// ClientFrame is a decoded client to server message.
type ClientFrame struct {
	Type           string `json:"type"`
	Token          string `json:"token,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	Content        string `json:"content,omitempty"`
}

// DecodeFrame parses a raw client frame. A frame without a type is
// malformed even when the JSON itself parses.
func DecodeFrame(raw []byte) (ClientFrame, error) {
	var frame ClientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return ClientFrame{}, err
	}
	if frame.Type == "" {
		return ClientFrame{}, errors.New("frame type is required")
	}
	return frame, nil
}

// Event is a server to client message. The Message field carries either a
// chat.Message (message_received) or an error text (error frames share the
// "message" key on the wire).
type Event struct {
	Type           string             `json:"type"`
	ConnectionID   string             `json:"connectionId,omitempty"`
	UserID         string             `json:"userId,omitempty"`
	ConversationID string             `json:"conversationId,omitempty"`
	Message        any                `json:"message,omitempty"`
	Conversation   *chat.Conversation `json:"conversation,omitempty"`
}

func connectedEvent(connectionID string) Event {
	return Event{Type: EventConnected, ConnectionID: connectionID}
}

func authenticatedEvent(userID string) Event {
	return Event{Type: EventAuthenticated, UserID: userID}
}

func conversationJoinedEvent(conversationID string) Event {
	return Event{Type: EventConversationJoined, ConversationID: conversationID}
}

func typingStartEvent(userID string) Event {
	return Event{Type: EventTypingStart, UserID: userID}
}

func typingStopEvent(userID string) Event {
	return Event{Type: EventTypingStop, UserID: userID}
}

func messageReceivedEvent(msg chat.Message) Event {
	return Event{Type: EventMessageReceived, Message: msg}
}

// ConversationCreatedEvent announces a new conversation to a user's tabs.
func ConversationCreatedEvent(conv chat.Conversation) Event {
	return Event{Type: EventConversationCreated, Conversation: &conv}
}

func conversationUpdatedEvent(conv chat.Conversation) Event {
	return Event{Type: EventConversationUpdated, Conversation: &conv}
}

// ConversationDeletedEvent announces a deleted conversation to a user's tabs.
func ConversationDeletedEvent(conversationID string) Event {
	return Event{Type: EventConversationDeleted, ConversationID: conversationID}
}

func errorEvent(text string) Event {
	return Event{Type: EventError, Message: text}
}

func pongEvent() Event {
	return Event{Type: EventPong}
}
