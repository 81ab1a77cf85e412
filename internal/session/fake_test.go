package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// fakeBackend records calls and answers from canned data.
type fakeBackend struct {
	histories   map[ChatID][]Message
	historyErr  error
	blockFetch  bool
	createID    ChatID
	createErr   error
	reply       string
	continueErr error
	chats       []Summary
	listErr     error

	calls []string
	users []UserID
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		histories: map[ChatID][]Message{},
		createID:  "chat-1",
		reply:     "refined prompt",
	}
}

func (f *fakeBackend) CreateChat(_ context.Context, user UserID, content string) (Created, error) {
	f.record(user, "create:"+content)
	if f.createErr != nil {
		return Created{}, f.createErr
	}
	return Created{ID: f.createID, Content: f.reply}, nil
}

func (f *fakeBackend) ContinueChat(_ context.Context, user UserID, id ChatID, content string) (string, error) {
	f.record(user, fmt.Sprintf("continue:%s:%s", id, content))
	if f.continueErr != nil {
		return "", f.continueErr
	}
	return f.reply, nil
}

func (f *fakeBackend) ChatHistory(ctx context.Context, user UserID, id ChatID) ([]Message, error) {
	f.record(user, "history:"+string(id))
	if f.blockFetch {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
			return nil, fmt.Errorf("fetch was never cancelled")
		}
	}
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.histories[id], nil
}

func (f *fakeBackend) ListChats(_ context.Context, user UserID) ([]Summary, error) {
	f.record(user, "list")
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.chats, nil
}

func (f *fakeBackend) record(user UserID, call string) {
	f.users = append(f.users, user)
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) count(prefix string) int {
	n := 0
	for _, c := range f.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func userMsg(content string) Message { return Message{Role: RoleUser, Content: content} }
func botMsg(content string) Message  { return Message{Role: RoleAssistant, Content: content} }

// diffContent compares role and content only; client ids are generated.
func diffContent(want, got []Message) string {
	return cmp.Diff(want, got, cmpopts.IgnoreFields(Message{}, "ID"), cmpopts.EquateEmpty())
}

func run(eff Effect) Result {
	return eff(context.Background())
}
