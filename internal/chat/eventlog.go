package chat

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisEventLog records delivered message events in Redis: a per-user
// presence hash plus a capped stream for downstream consumers.
type RedisEventLog struct {
	client    RedisPipelineClient
	stream    string
	keyPrefix string
	ttl       time.Duration
	maxLen    int64
}

// RedisPipelineClient is the minimal client surface used by RedisEventLog.
type RedisPipelineClient interface {
	Pipeline() RedisPipeliner
}

// RedisPipeliner is the subset of commands used within a pipeline.
type RedisPipeliner interface {
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	Exec(ctx context.Context) ([]redis.Cmder, error)
}

// NewRedisEventLog constructs a Redis-backed event log.
func NewRedisEventLog(client RedisPipelineClient, stream string, ttl time.Duration, maxLen int64) *RedisEventLog {
	if stream == "" {
		stream = "chat_events"
	}
	return &RedisEventLog{
		client:    client,
		stream:    stream,
		keyPrefix: "presence:",
		ttl:       ttl,
		maxLen:    maxLen,
	}
}

// Record updates the sender's presence key and appends the message to the stream.
func (r *RedisEventLog) Record(ctx context.Context, userID string, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	timestamp := msg.CreatedAt.UTC().Format(time.RFC3339Nano)

	pipe := r.client.Pipeline()
	if userID != "" {
		key := r.keyPrefix + userID
		pipe.HSet(ctx, key, map[string]any{
			"user_id":         userID,
			"conversation_id": msg.ConversationID,
			"last_message_at": timestamp,
		})
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
	}

	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]any{
			"message_id":      msg.ID,
			"conversation_id": msg.ConversationID,
			"role":            string(msg.Role),
			"provider":        msg.Provider,
			"tokens":          msg.Tokens,
			"timestamp":       timestamp,
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	pipe.XAdd(ctx, args)

	_, err := pipe.Exec(ctx)
	return err
}
