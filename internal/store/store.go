// Package store persists conversations for the reference backend.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// UntitledChat is the listing title of a conversation without user messages.
const UntitledChat = "Untitled Refinement"

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("chat not found")

// Chat is a conversation owned by one user.
type Chat struct {
	ID        string
	UserID    string
	CreatedAt time.Time
}

// Message is one stored turn. IDs increase in insertion order.
type Message struct {
	ID        int64
	ChatID    string
	Role      string
	Content   string
	CreatedAt time.Time
}

// ChatPreview is a listing entry.
type ChatPreview struct {
	ID        string
	Title     string
	CreatedAt time.Time
}

// Store is the persistence contract of the backend.
type Store interface {
	CreateChat(ctx context.Context, userID string) (Chat, error)
	GetChat(ctx context.Context, id string) (Chat, error)
	AddMessage(ctx context.Context, chatID, role, content string) (Message, error)
	// Messages returns the messages of a chat in creation order. An unknown
	// chat has no messages.
	Messages(ctx context.Context, chatID string) ([]Message, error)
	// ListChats returns the user's chats newest first.
	ListChats(ctx context.Context, userID string, limit int) ([]ChatPreview, error)
	Close() error
}

// Open returns the store for a driver name: memory, sqlite, postgres or mysql.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "memory":
		return NewMemory(), nil
	case "sqlite", "postgres", "mysql":
		return OpenSQL(ctx, driver, dsn)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

func titleOf(firstUserMessage string) string {
	if strings.TrimSpace(firstUserMessage) == "" {
		return UntitledChat
	}
	return firstUserMessage
}

// clock hands out strictly increasing timestamps so that creation order
// survives identical wall-clock readings.
type clock struct {
	mu   sync.Mutex
	last int64
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := time.Now().UnixNano()
	if n <= c.last {
		n = c.last + 1
	}
	c.last = n
	return time.Unix(0, n).UTC()
}
