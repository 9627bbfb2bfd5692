package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestRedisEventLog_RecordsPresenceAndStream(t *testing.T) {
	t.Parallel()

	pipe := &stubPipeline{}
	client := &stubRedisClient{pipe: pipe}
	log := NewRedisEventLog(client, "chat_events", 0, 0)

	msg := Message{
		ID:             "msg-1",
		ConversationID: "conv-1",
		Role:           RoleUser,
		Content:        "hello",
		CreatedAt:      time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
	}

	if err := log.Record(context.Background(), "user-1", msg); err != nil {
		t.Fatalf("record: %v", err)
	}

	if len(pipe.hsets) != 1 {
		t.Fatalf("expected 1 HSET, got %d", len(pipe.hsets))
	}
	if pipe.hsets[0].key != "presence:user-1" {
		t.Fatalf("unexpected presence key %q", pipe.hsets[0].key)
	}
	hash := toMap(pipe.hsets[0].values)
	if hash["user_id"] != "user-1" || hash["conversation_id"] != "conv-1" {
		t.Fatalf("unexpected presence values: %+v", hash)
	}

	if len(pipe.xadds) != 1 {
		t.Fatalf("expected 1 XADD, got %d", len(pipe.xadds))
	}
	if pipe.xadds[0].Stream != "chat_events" {
		t.Fatalf("unexpected stream %q", pipe.xadds[0].Stream)
	}
	values := pipe.xadds[0].Values.(map[string]any)
	if values["message_id"] != "msg-1" || values["role"] != "user" {
		t.Fatalf("unexpected stream values: %+v", values)
	}

	if !pipe.execCalled {
		t.Fatalf("expected Exec to be called")
	}
}

func TestRedisEventLog_TTLMaxLenAndDefaultStream(t *testing.T) {
	t.Parallel()

	pipe := &stubPipeline{}
	client := &stubRedisClient{pipe: pipe}
	log := NewRedisEventLog(client, "", time.Minute, 5)

	msg := Message{ID: "msg-2", ConversationID: "conv-2", Role: RoleAssistant, Content: "hi"}
	if err := log.Record(context.Background(), "user-2", msg); err != nil {
		t.Fatalf("record: %v", err)
	}

	if pipe.expirationCalls != 1 {
		t.Fatalf("expected presence key expiration to be set")
	}
	if pipe.expirations["presence:user-2"] != time.Minute {
		t.Fatalf("unexpected ttl: %v", pipe.expirations["presence:user-2"])
	}
	if len(pipe.xadds) != 1 {
		t.Fatalf("expected 1 XADD, got %d", len(pipe.xadds))
	}
	if pipe.xadds[0].Stream != "chat_events" {
		t.Fatalf("expected default stream, got %q", pipe.xadds[0].Stream)
	}
	if pipe.xadds[0].MaxLen != 5 || !pipe.xadds[0].Approx {
		t.Fatalf("expected maxlen settings applied, got %+v", pipe.xadds[0])
	}
}

func TestRedisEventLog_SkipsPresenceWithoutUser(t *testing.T) {
	t.Parallel()

	pipe := &stubPipeline{}
	client := &stubRedisClient{pipe: pipe}
	log := NewRedisEventLog(client, "chat_events", time.Minute, 0)

	msg := Message{ID: "msg-3", ConversationID: "conv-3", Role: RoleAssistant, Content: "hi"}
	if err := log.Record(context.Background(), "", msg); err != nil {
		t.Fatalf("record: %v", err)
	}

	if len(pipe.hsets) != 0 || pipe.expirationCalls != 0 {
		t.Fatalf("expected no presence writes without a user id")
	}
	if len(pipe.xadds) != 1 {
		t.Fatalf("expected stream append regardless of user, got %d", len(pipe.xadds))
	}
}

func TestRedisEventLog_RespectsCanceledContext(t *testing.T) {
	t.Parallel()

	pipe := &stubPipeline{}
	client := &stubRedisClient{pipe: pipe}
	log := NewRedisEventLog(client, "chat_events", 0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := log.Record(ctx, "user-1", Message{ID: "msg-4", ConversationID: "conv-4"})
	if err == nil {
		t.Fatalf("expected context error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if pipe.execCalled || len(pipe.hsets) > 0 || len(pipe.xadds) > 0 {
		t.Fatalf("expected no writes when context canceled")
	}
}

type stubRedisClient struct {
	pipe *stubPipeline
}

func (s *stubRedisClient) Pipeline() RedisPipeliner { return s.pipe }

type stubPipeline struct {
	hsets []struct {
		key    string
		values []any
	}
	expirations     map[string]time.Duration
	expirationCalls int
	xadds           []redis.XAddArgs
	execCalled      bool
	execErr         error
}

func (s *stubPipeline) HSet(_ context.Context, key string, values ...any) *redis.IntCmd {
	s.hsets = append(s.hsets, struct {
		key    string
		values []any
	}{key: key, values: values})
	return redis.NewIntCmd(context.Background())
}

func (s *stubPipeline) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	if s.expirations == nil {
		s.expirations = map[string]time.Duration{}
	}
	s.expirations[key] = ttl
	s.expirationCalls++
	return redis.NewBoolCmd(context.Background())
}

func (s *stubPipeline) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	s.xadds = append(s.xadds, *a)
	return redis.NewStringCmd(context.Background())
}

func (s *stubPipeline) Exec(_ context.Context) ([]redis.Cmder, error) {
	s.execCalled = true
	return nil, s.execErr
}

func toMap(args []any) map[string]any {
	if len(args) == 0 {
		return map[string]any{}
	}
	if m, ok := args[0].(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
