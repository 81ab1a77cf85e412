package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, w *Workspace, effects []Effect) {
	t.Helper()
	require.NoError(t, Run(context.Background(), w.Apply, effects...))
}

func TestWorkspace_CreateRefreshesList(t *testing.T) {
	be := newFakeBackend()
	be.createID = "X"
	w := NewWorkspace(alice, be, nil)

	drain(t, w, w.Start())
	assert.Empty(t, w.List.List())

	effects, err := w.Submit("hello")
	require.NoError(t, err)
	be.chats = []Summary{{ID: "X", Title: "hello"}}
	drain(t, w, effects)

	assert.Equal(t, ChatID("X"), w.Chat.ActiveID())
	assert.Equal(t, []Summary{{ID: "X", Title: "hello"}}, w.List.List())
	assert.Equal(t, []string{"list", "create:hello", "list"}, be.calls)
	for _, u := range be.users {
		assert.Equal(t, alice, u)
	}
}

func TestWorkspace_ContinueDoesNotRefresh(t *testing.T) {
	be := newFakeBackend()
	be.histories["X"] = []Message{userMsg("a"), botMsg("b")}
	w := NewWorkspace(alice, be, nil)

	drain(t, w, w.Select("X"))
	listed := be.count("list")

	effects, err := w.Submit("c")
	require.NoError(t, err)
	drain(t, w, effects)

	assert.Equal(t, listed, be.count("list"))
	assert.Len(t, w.Chat.Messages(), 4)
}

func TestWorkspace_SelectRefreshesOnChange(t *testing.T) {
	be := newFakeBackend()
	be.histories["X"] = []Message{userMsg("a")}
	w := NewWorkspace(alice, be, nil)

	drain(t, w, w.Select("X"))
	assert.Equal(t, []string{"history:X", "list"}, be.calls)

	drain(t, w, w.Select("X"))
	assert.Equal(t, []string{"history:X", "list"}, be.calls, "re-selection is inert")

	drain(t, w, w.NewChat())
	assert.Equal(t, []string{"history:X", "list", "list"}, be.calls)
	assert.Empty(t, w.Chat.Messages())
}

func TestWorkspace_StaleCreateStillRefreshes(t *testing.T) {
	be := newFakeBackend()
	be.createID = "NEW"
	w := NewWorkspace(alice, be, nil)

	submit, err := w.Submit("hello")
	require.NoError(t, err)
	w.NewChat()

	follow := w.Apply(run(submit[0]))
	require.Len(t, follow, 1)
	assert.True(t, w.Chat.ActiveID().IsZero())
	assert.Empty(t, w.Chat.Messages())

	be.chats = []Summary{{ID: "NEW"}}
	drain(t, w, follow)
	assert.Equal(t, []Summary{{ID: "NEW"}}, w.List.List())
}

func TestWorkspace_SubmitRejectionReturnsNoEffects(t *testing.T) {
	w := NewWorkspace(alice, newFakeBackend(), nil)

	effects, err := w.Submit("   ")
	assert.ErrorIs(t, err, ErrEmptySubmission)
	assert.Empty(t, effects)
}

func TestWorkspace_ReloadAfterFailedFetch(t *testing.T) {
	be := newFakeBackend()
	be.historyErr = assert.AnError
	be.histories["X"] = []Message{userMsg("a"), botMsg("b")}
	w := NewWorkspace(alice, be, nil)

	drain(t, w, w.Select("X"))
	require.Error(t, w.Chat.Err())

	be.historyErr = nil
	drain(t, w, w.Reload())
	assert.NoError(t, w.Chat.Err())
	assert.Len(t, w.Chat.Messages(), 2)
}

func TestRun_StopsOnCancelledContext(t *testing.T) {
	be := newFakeBackend()
	w := NewWorkspace(alice, be, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Run(ctx, w.Apply, w.Start()...)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, be.calls)
}
