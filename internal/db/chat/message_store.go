package chatdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"parley/internal/chat"

	"github.com/google/uuid"
)

// PostgresStore persists conversations and messages in Postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a chat store backed by Postgres.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresStoreWithSchema initializes the schema then returns the store.
func NewPostgresStoreWithSchema(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	store := NewPostgresStore(db)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// InitSchema creates chat tables if they do not exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			title TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			provider TEXT,
			tokens INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS messages_conversation_idx ON messages (conversation_id, created_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// ErrConversationNotFound signals the conversation row does not exist.
var ErrConversationNotFound = errors.New("conversation not found")

// AppendMessage inserts a message, creating the conversation row on first use.
func (s *PostgresStore) AppendMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	if err := msg.Validate(); err != nil {
		return chat.Message{}, err
	}
	msg.ID = uuid.New().String()

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`,
		msg.ConversationID,
	); err != nil {
		return chat.Message{}, fmt.Errorf("ensure conversation: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, provider, tokens)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content, msg.Provider, msg.Tokens,
	)
	if err := row.Scan(&msg.CreatedAt); err != nil {
		return chat.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

// TouchConversation bumps updated_at and returns the conversation.
func (s *PostgresStore) TouchConversation(ctx context.Context, conversationID string) (chat.Conversation, error) {
	if conversationID == "" {
		return chat.Conversation{}, chat.ErrInvalidConversationID
	}

	conv := chat.Conversation{ID: conversationID}
	var title sql.NullString
	row := s.db.QueryRowContext(ctx,
		`UPDATE conversations SET updated_at = NOW() WHERE id = $1 RETURNING title, updated_at`,
		conversationID,
	)
	switch err := row.Scan(&title, &conv.UpdatedAt); err {
	case nil:
		conv.Title = title.String
		return conv, nil
	case sql.ErrNoRows:
		return chat.Conversation{}, ErrConversationNotFound
	default:
		return chat.Conversation{}, err
	}
}

// History returns the most recent messages for a conversation in send order.
func (s *PostgresStore) History(ctx context.Context, conversationID string, limit int) ([]chat.Message, error) {
	query := `SELECT id, conversation_id, role, content, COALESCE(provider, ''), tokens, created_at
		FROM messages WHERE conversation_id = $1 ORDER BY created_at DESC`
	args := []any{conversationID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var msg chat.Message
		var role string
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &msg.Provider, &msg.Tokens, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.Role = chat.Role(role)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows come back newest first; reverse into send order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
