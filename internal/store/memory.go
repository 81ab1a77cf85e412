package store

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Memory is a Store kept in process memory.
type Memory struct {
	mu       sync.RWMutex
	clock    clock
	chats    map[string]Chat
	order    []string // chat ids in creation order
	messages map[string][]Message
	nextID   int64
}

func NewMemory() *Memory {
	return &Memory{
		chats:    make(map[string]Chat),
		messages: make(map[string][]Message),
	}
}

func (m *Memory) CreateChat(_ context.Context, userID string) (Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := Chat{ID: uuid.NewString(), UserID: userID, CreatedAt: m.clock.now()}
	m.chats[c.ID] = c
	m.order = append(m.order, c.ID)
	return c, nil
}

func (m *Memory) GetChat(_ context.Context, id string) (Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.chats[id]
	if !ok {
		return Chat{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) AddMessage(_ context.Context, chatID, role, content string) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.chats[chatID]; !ok {
		return Message{}, ErrNotFound
	}
	m.nextID++
	msg := Message{ID: m.nextID, ChatID: chatID, Role: role, Content: content, CreatedAt: m.clock.now()}
	m.messages[chatID] = append(m.messages[chatID], msg)
	return msg, nil
}

func (m *Memory) Messages(_ context.Context, chatID string) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.messages[chatID]), nil
}

func (m *Memory) ListChats(_ context.Context, userID string, limit int) ([]ChatPreview, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	var out []ChatPreview
	for i := len(m.order) - 1; i >= 0; i-- {
		if len(out) == limit {
			break
		}
		c := m.chats[m.order[i]]
		if c.UserID != userID {
			continue
		}
		out = append(out, ChatPreview{ID: c.ID, Title: m.title(c.ID), CreatedAt: c.CreatedAt})
	}
	return out, nil
}

func (m *Memory) title(chatID string) string {
	for _, msg := range m.messages[chatID] {
		if msg.Role == "user" {
			return titleOf(msg.Content)
		}
	}
	return UntitledChat
}

func (m *Memory) Close() error { return nil }
