package session

import (
	"go.uber.org/zap"
)

// Workspace composes the chat and list controllers for one user. The chat
// controller reports newly created conversations upward; the workspace turns
// that into a list refresh.
type Workspace struct {
	user UserID
	Chat *ChatController
	List *ListController
}

func NewWorkspace(user UserID, backend Backend, log *zap.Logger) *Workspace {
	if log == nil {
		log = zap.NewNop()
	}
	return &Workspace{
		user: user,
		Chat: NewChatController(backend, log.Named("chat")),
		List: NewListController(backend, log.Named("list")),
	}
}

// Start returns the initial list refresh.
func (w *Workspace) Start() []Effect {
	return []Effect{w.List.Refresh(w.user)}
}

// Select switches the active conversation.
func (w *Workspace) Select(id ChatID) []Effect {
	before := w.Chat.ActiveID()
	effects := collect(w.Chat.Select(w.user, id))
	if w.Chat.ActiveID() != before {
		effects = append(effects, w.List.Refresh(w.user))
	}
	return effects
}

// NewChat resets the chat controller to an unsaved conversation.
func (w *Workspace) NewChat() []Effect { return w.Select("") }

// Submit forwards text to the chat controller.
func (w *Workspace) Submit(text string) ([]Effect, error) {
	eff, err := w.Chat.Submit(w.user, text)
	if err != nil {
		return nil, err
	}
	return collect(eff), nil
}

// Reload retries a failed history fetch.
func (w *Workspace) Reload() []Effect {
	return collect(w.Chat.Reload(w.user))
}

// Apply routes a result to its controller and returns follow-up effects.
func (w *Workspace) Apply(r Result) []Effect {
	switch r := r.(type) {
	case ListResult:
		w.List.Apply(r)
		return nil
	default:
		if created := w.Chat.Apply(r); !created.IsZero() {
			return []Effect{w.List.Refresh(w.user)}
		}
		return nil
	}
}

// Close releases the chat controller's selection context.
func (w *Workspace) Close() { w.Chat.Close() }

func collect(effs ...Effect) []Effect {
	out := effs[:0]
	for _, e := range effs {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}
