package session

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// ChatController drives a single conversation: history loading, optimistic
// submission and reconciliation of the server-issued identifier.
//
// All methods must be called from one goroutine, the event loop. Effects may
// run anywhere, but their results must come back through Apply on that loop.
type ChatController struct {
	svc ChatService
	log *zap.Logger

	messages     []Message
	activeID     ChatID
	lastSyncedID ChatID
	phase        Phase
	lastErr      error

	// gen identifies the current selection. Effects carry the value they
	// were issued under; Apply drops results from older selections.
	gen       uint64
	selCtx    context.Context
	cancelSel context.CancelFunc
}

// NewChatController creates a controller with no active conversation.
func NewChatController(svc ChatService, log *zap.Logger) *ChatController {
	if log == nil {
		log = zap.NewNop()
	}
	c := &ChatController{svc: svc, log: log}
	c.selCtx, c.cancelSel = context.WithCancel(context.Background())
	return c
}

// Select makes id the active conversation. The zero id starts a new one.
//
// Re-selecting the active non-zero id is a no-op. A history fetch is returned
// only when id differs from the last synchronized id; a nil Effect means
// there is nothing to run.
func (c *ChatController) Select(user UserID, id ChatID) Effect {
	// lastSyncedID is always empty or the active id, so this is also the
	// cache check: any other non-zero id needs a fetch.
	if !id.IsZero() && id == c.activeID {
		return nil
	}

	c.supersede()
	c.lastErr = nil
	c.activeID = id

	if id.IsZero() {
		c.messages = nil
		c.lastSyncedID = ""
		c.log.Debug("new conversation", zap.Uint64("gen", c.gen))
		return nil
	}
	return c.loadHistory(user)
}

// Reload re-fetches the history of the active conversation after a failed
// fetch. It returns nil when the messages are already authoritative or the
// controller is busy.
func (c *ChatController) Reload(user UserID) Effect {
	if c.activeID.IsZero() || c.activeID == c.lastSyncedID || c.phase != PhaseIdle {
		return nil
	}
	c.supersede()
	c.lastErr = nil
	return c.loadHistory(user)
}

func (c *ChatController) loadHistory(user UserID) Effect {
	c.messages = nil
	c.lastSyncedID = ""
	c.phase = PhaseLoadingHistory

	svc, id, gen, sel := c.svc, c.activeID, c.gen, c.selCtx
	c.log.Debug("loading history", zap.String("chat_id", string(id)), zap.Uint64("gen", gen))

	return func(ctx context.Context) Result {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(sel, cancel)
		defer stop()

		msgs, err := svc.ChatHistory(ctx, user, id)
		return HistoryResult{gen: gen, ID: id, Messages: msgs, Err: err}
	}
}

// Submit appends the user's text optimistically and returns the create or
// continue call. Rejections leave state untouched:
//
//   - ErrEmptySubmission for blank text
//   - ErrSubmissionInFlight while a submission is outstanding
//   - ErrHistoryLoading while a history fetch is pending, since the fetched
//     history replaces the messages and would drop the optimistic one
func (c *ChatController) Submit(user UserID, text string) (Effect, error) {
	content := strings.TrimSpace(text)
	if content == "" {
		return nil, ErrEmptySubmission
	}
	switch c.phase {
	case PhaseSubmitting:
		return nil, ErrSubmissionInFlight
	case PhaseLoadingHistory:
		return nil, ErrHistoryLoading
	}

	c.lastErr = nil
	c.messages = append(c.messages, Message{ID: tempID(RoleUser), Role: RoleUser, Content: content})
	c.phase = PhaseSubmitting

	svc, id, gen := c.svc, c.activeID, c.gen
	create := id.IsZero()
	c.log.Debug("submitting",
		zap.Bool("create", create),
		zap.String("chat_id", string(id)),
		zap.Int("chars", len(content)),
	)

	return func(ctx context.Context) Result {
		if create {
			created, err := svc.CreateChat(ctx, user, content)
			return SubmitResult{gen: gen, Create: true, ID: created.ID, Content: created.Content, Err: err}
		}
		reply, err := svc.ContinueChat(ctx, user, id, content)
		return SubmitResult{gen: gen, ID: id, Content: reply, Err: err}
	}, nil
}

// Apply folds a completed effect into the controller. It returns the id of a
// conversation the backend just created, even when the result itself is stale
// for the current selection, so the caller can refresh listings.
func (c *ChatController) Apply(r Result) (created ChatID) {
	switch r := r.(type) {
	case HistoryResult:
		c.applyHistory(r)
	case SubmitResult:
		return c.applySubmit(r)
	}
	return ""
}

func (c *ChatController) applyHistory(r HistoryResult) {
	if r.gen != c.gen || r.ID != c.activeID || c.phase != PhaseLoadingHistory {
		c.log.Debug("discarding stale history", zap.String("chat_id", string(r.ID)), zap.Uint64("gen", r.gen))
		return
	}
	c.phase = PhaseIdle
	if r.Err != nil {
		c.lastErr = classify(r.Err)
		c.messages = nil
		c.log.Warn("history fetch failed", zap.String("chat_id", string(r.ID)), zap.Error(r.Err))
		return
	}

	msgs := make([]Message, 0, len(r.Messages))
	for _, m := range r.Messages {
		if m.ID == "" {
			m.ID = tempID(m.Role)
		}
		msgs = append(msgs, m)
	}
	c.messages = msgs
	c.lastSyncedID = r.ID
}

func (c *ChatController) applySubmit(r SubmitResult) ChatID {
	var created ChatID
	if r.Create && r.Err == nil && !r.ID.IsZero() {
		created = r.ID
	}
	if r.gen != c.gen || c.phase != PhaseSubmitting {
		c.log.Debug("discarding stale submission", zap.String("chat_id", string(r.ID)), zap.Uint64("gen", r.gen))
		return created
	}
	c.phase = PhaseIdle

	if r.Err != nil {
		c.lastErr = classify(r.Err)
		c.log.Warn("submission failed", zap.Bool("create", r.Create), zap.Error(r.Err))
		return created
	}
	if r.Create {
		if r.ID.IsZero() {
			c.lastErr = fmt.Errorf("%w: create returned no chat id", ErrConnectivity)
			return ""
		}
		c.activeID = r.ID
		c.lastSyncedID = r.ID
		c.log.Info("conversation created", zap.String("chat_id", string(r.ID)))
	}
	c.messages = append(c.messages, Message{ID: tempID(RoleAssistant), Role: RoleAssistant, Content: r.Content})
	return created
}

// supersede ends the current selection: pending results become stale and
// in-flight history fetches are cancelled.
func (c *ChatController) supersede() {
	c.gen++
	c.cancelSel()
	c.selCtx, c.cancelSel = context.WithCancel(context.Background())
	c.phase = PhaseIdle
}

// Close cancels any in-flight history fetch.
func (c *ChatController) Close() { c.cancelSel() }

// Messages returns a copy of the current message sequence.
func (c *ChatController) Messages() []Message { return slices.Clone(c.messages) }

func (c *ChatController) ActiveID() ChatID     { return c.activeID }
func (c *ChatController) LastSyncedID() ChatID { return c.lastSyncedID }
func (c *ChatController) Phase() Phase         { return c.phase }

// Err returns the last connectivity or service failure, if any. It wraps
// ErrConnectivity or ErrService.
func (c *ChatController) Err() error { return c.lastErr }

// LastReply returns the content of the most recent assistant message.
func (c *ChatController) LastReply() (string, bool) {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == RoleAssistant {
			return c.messages[i].Content, true
		}
	}
	return "", false
}
