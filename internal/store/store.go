// Package store persists chat transcripts in Postgres. Persistence is best
// effort from the server's point of view: a failed write loses history, not
// the answer.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// ErrNotFound is returned when a chat does not exist.
var ErrNotFound = errors.New("chat not found")

type Store struct {
	DB *sql.DB
}

// New opens a Postgres connection and verifies it.
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{DB: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.DB.Close() }

// Chat is one stored conversation.
type Chat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one transcript entry. Payload carries optional structured data
// alongside the text, for assistant messages the cited sources as JSON.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Payload   []byte    `json:"payload,omitempty"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
}

// UpsertChat writes the chat and replaces its full transcript in one
// transaction. Replacing wholesale keeps the stored order authoritative and
// sidesteps reconciling edits to earlier messages.
func (s *Store) UpsertChat(ctx context.Context, chatID, title string, msgs []Message) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert chat: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO chats (id, title, created_at, updated_at)
VALUES ($1,$2,NOW(),NOW())
ON CONFLICT (id) DO UPDATE SET
  title      = EXCLUDED.title,
  updated_at = NOW();
`, chatID, title)
	if err != nil {
		return fmt.Errorf("upsert chat %s: %w", chatID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE chat_id=$1`, chatID); err != nil {
		return fmt.Errorf("clear messages for %s: %w", chatID, err)
	}

	for i, msg := range msgs {
		id := msg.ID
		if id == "" {
			id = uuid.NewString()
		}
		var payload interface{}
		if len(msg.Payload) > 0 {
			payload = msg.Payload
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO messages (id, chat_id, role, content, payload, order_idx, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW());
`, id, chatID, msg.Role, msg.Content, payload, i)
		if err != nil {
			return fmt.Errorf("insert message %d for %s: %w", i, chatID, err)
		}
	}

	return tx.Commit()
}

// GetChat loads a chat and its transcript in stored order.
func (s *Store) GetChat(ctx context.Context, chatID string) (Chat, []Message, error) {
	var chat Chat
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at FROM chats WHERE id=$1`, chatID,
	).Scan(&chat.ID, &chat.Title, &chat.CreatedAt, &chat.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Chat{}, nil, ErrNotFound
		}
		return Chat{}, nil, fmt.Errorf("get chat %s: %w", chatID, err)
	}

	rows, err := s.DB.QueryContext(ctx, `
SELECT id, chat_id, role, content, payload, order_idx, created_at
FROM messages WHERE chat_id=$1 ORDER BY order_idx ASC`, chatID)
	if err != nil {
		return Chat{}, nil, fmt.Errorf("get messages for %s: %w", chatID, err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var payload sql.NullString
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &payload, &m.Order, &m.CreatedAt); err != nil {
			return Chat{}, nil, err
		}
		if payload.Valid {
			m.Payload = []byte(payload.String)
		}
		msgs = append(msgs, m)
	}
	return chat, msgs, rows.Err()
}

// ListChats returns all chats, most recently updated first, without their
// transcripts.
func (s *Store) ListChats(ctx context.Context) ([]Chat, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, title, created_at, updated_at FROM chats ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var out []Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteChat removes a chat; messages cascade in the schema.
func (s *Store) DeleteChat(ctx context.Context, chatID string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM chats WHERE id=$1`, chatID)
	if err != nil {
		return fmt.Errorf("delete chat %s: %w", chatID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
