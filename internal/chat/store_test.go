package chat

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInMemoryStore_AppendAssignsIDAndTimestamp(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()

	msg, err := store.AppendMessage(context.Background(), Message{ConversationID: "conv-1", Role: RoleUser, Content: "hello"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if msg.ID == "" {
		t.Fatalf("expected message id to be assigned")
	}
	if msg.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be set")
	}

	stored := store.Messages("conv-1")
	if len(stored) != 1 || stored[0].Content != "hello" {
		t.Fatalf("unexpected stored messages: %+v", stored)
	}
}

func TestInMemoryStore_AppendValidates(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()

	if _, err := store.AppendMessage(context.Background(), Message{Role: RoleUser, Content: "hi"}); !errors.Is(err, ErrInvalidConversationID) {
		t.Fatalf("expected ErrInvalidConversationID, got %v", err)
	}
	if _, err := store.AppendMessage(context.Background(), Message{ConversationID: "conv-1", Role: RoleUser}); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
	if _, err := store.AppendMessage(context.Background(), Message{ConversationID: "conv-1", Role: Role("system"), Content: "hi"}); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if got := store.Messages("conv-1"); len(got) != 0 {
		t.Fatalf("expected no messages stored, got %d", len(got))
	}
}

func TestInMemoryStore_HistoryRespectsLimit(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	for _, content := range []string{"one", "two", "three"} {
		if _, err := store.AppendMessage(context.Background(), Message{ConversationID: "conv-1", Role: RoleUser, Content: content}); err != nil {
			t.Fatalf("append %q: %v", content, err)
		}
	}

	history, err := store.History(context.Background(), "conv-1", 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
	if history[0].Content != "two" || history[1].Content != "three" {
		t.Fatalf("expected most recent messages in order, got %+v", history)
	}
}

func TestInMemoryStore_TouchConversationBumpsUpdatedAt(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	base := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	current := base
	store.now = func() time.Time { return current }

	if _, err := store.AppendMessage(context.Background(), Message{ConversationID: "conv-1", Role: RoleUser, Content: "hello"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	current = base.Add(time.Minute)
	conv, err := store.TouchConversation(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("touch: %v", err)
	}
	if !conv.UpdatedAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("expected updated_at bumped, got %v", conv.UpdatedAt)
	}
}

func TestInMemoryStore_RespectsCanceledContext(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.AppendMessage(ctx, Message{ConversationID: "conv-1", Role: RoleUser, Content: "hi"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := store.TouchConversation(ctx, "conv-1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := store.History(ctx, "conv-1", 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
