package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	tea "github.com/charmbracelet/bubbletea"

	"refinery/cmd/refinery/ui"
	"refinery/internal/session"
)

// stubBackend is an in-memory backend that behaves like the real server.
type stubBackend struct {
	mu        sync.Mutex
	next      int
	chats     []session.Summary
	histories map[session.ChatID][]session.Message
	createErr error
	listErr   error
	calls     []string
}

func newStubBackend() *stubBackend {
	return &stubBackend{histories: map[session.ChatID][]session.Message{}}
}

func (b *stubBackend) CreateChat(_ context.Context, _ session.UserID, content string) (session.Created, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "create:"+content)
	if b.createErr != nil {
		return session.Created{}, b.createErr
	}
	b.next++
	id := session.ChatID(fmt.Sprintf("chat-%d", b.next))
	reply := "**Refined:** " + content
	b.histories[id] = []session.Message{
		{ID: "1", Role: session.RoleUser, Content: content},
		{ID: "2", Role: session.RoleAssistant, Content: reply},
	}
	b.chats = append([]session.Summary{{ID: id, Title: content, CreatedAt: time.Now()}}, b.chats...)
	return session.Created{ID: id, Content: reply}, nil
}

func (b *stubBackend) ContinueChat(_ context.Context, _ session.UserID, id session.ChatID, content string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, fmt.Sprintf("continue:%s:%s", id, content))
	return "**Refined again:** " + content, nil
}

func (b *stubBackend) ChatHistory(_ context.Context, _ session.UserID, id session.ChatID) ([]session.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "history:"+string(id))
	return b.histories[id], nil
}

func (b *stubBackend) ListChats(_ context.Context, _ session.UserID) ([]session.Summary, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "list")
	if b.listErr != nil {
		return nil, b.listErr
	}
	return append([]session.Summary(nil), b.chats...), nil
}

func (b *stubBackend) callCount(prefix string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// newTestModel builds a sized model whose startup effects have completed.
func newTestModel(t *testing.T, b *stubBackend, copyFn func(string) error) Model {
	t.Helper()
	ws := session.NewWorkspace("tester", b, nil)
	m := New(Config{Workspace: ws, Styles: ui.NewStyles(ui.DarkTheme()), Copy: copyFn})
	m.input.Cursor.SetMode(cursor.CursorStatic)
	t.Cleanup(m.Close)

	m = m.resize(100, 40)
	return drain(t, m, m.run(ws.Start()))
}

// drain executes cmd and everything it leads to, feeding session results and
// clipboard outcomes back into the model. Other messages are dropped.
func drain(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case resultMsg, copiedMsg:
			next, follow := m.Update(msg)
			m = next.(Model)
			queue = append(queue, follow)
		}
	}
	return m
}

func press(t *testing.T, m Model, key tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(key)
	return next.(Model), cmd
}

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyTab   = tea.KeyMsg{Type: tea.KeyTab}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}
