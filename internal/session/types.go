// Package session implements the client-side chat state machine for Prompt Refinery.
//
// Two controllers live here. ChatController owns the message sequence and the
// submission lifecycle of the active conversation; ListController owns the
// conversation summaries of the current user. Workspace composes them.
//
// Nothing in this package blocks or spawns goroutines. Every operation mutates
// state synchronously and returns Effects: deferred backend calls that the
// caller runs wherever it likes and whose Result must be handed back to Apply
// on the same loop that issued them.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChatID identifies a conversation on the backend. The zero value means the
// conversation has not been created yet.
type ChatID string

// IsZero reports whether the conversation has no durable identifier.
func (id ChatID) IsZero() bool { return id == "" }

// UserID is the opaque identity supplied by the identity provider.
type UserID string

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation.
type Message struct {
	ID      string
	Role    Role
	Content string
}

// Summary is a read-only projection of a conversation for listings.
type Summary struct {
	ID        ChatID
	Title     string
	CreatedAt time.Time
}

// Phase is the lifecycle state of a ChatController.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoadingHistory
	PhaseSubmitting
)

// String returns the display name for each phase
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoadingHistory:
		return "loading_history"
	case PhaseSubmitting:
		return "submitting"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Created is the backend's answer to a create call.
type Created struct {
	ID      ChatID
	Content string
}

// ChatService is the part of the backend a ChatController talks to.
type ChatService interface {
	CreateChat(ctx context.Context, user UserID, content string) (Created, error)
	ContinueChat(ctx context.Context, user UserID, id ChatID, content string) (string, error)
	ChatHistory(ctx context.Context, user UserID, id ChatID) ([]Message, error)
}

// Lister is the part of the backend a ListController talks to.
type Lister interface {
	ListChats(ctx context.Context, user UserID) ([]Summary, error)
}

// Backend is the full remote contract.
type Backend interface {
	ChatService
	Lister
}

// tempID returns a client-side message id. UUIDv7 is time-ordered and
// monotonic within the process.
func tempID(role Role) string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("temp-%s-%d", role, time.Now().UnixNano())
	}
	return "temp-" + string(role) + "-" + id.String()
}
