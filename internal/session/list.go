package session

import (
	"context"
	"slices"

	"go.uber.org/zap"
)

// ListController keeps the summaries of the current user's conversations.
// The list is replaced wholesale on every successful refresh.
type ListController struct {
	src Lister
	log *zap.Logger

	items   []Summary
	lastErr error
	gen     uint64
	loading bool
}

func NewListController(src Lister, log *zap.Logger) *ListController {
	if log == nil {
		log = zap.NewNop()
	}
	return &ListController{src: src, log: log}
}

// Refresh returns the fetch of the user's summaries. A newer refresh makes
// every older one stale.
func (l *ListController) Refresh(user UserID) Effect {
	l.gen++
	l.loading = true
	src, gen := l.src, l.gen
	return func(ctx context.Context) Result {
		items, err := src.ListChats(ctx, user)
		return ListResult{gen: gen, Summaries: items, Err: err}
	}
}

// Apply folds a refresh result into the list. A failed refresh keeps the
// previous list and records the error; there is no retry.
func (l *ListController) Apply(r ListResult) {
	if r.gen != l.gen {
		l.log.Debug("discarding stale list", zap.Uint64("gen", r.gen))
		return
	}
	l.loading = false
	if r.Err != nil {
		l.lastErr = classify(r.Err)
		l.log.Warn("list refresh failed", zap.Error(r.Err))
		return
	}
	l.items = slices.Clone(r.Summaries)
	l.lastErr = nil
}

// List returns the summaries in backend order.
func (l *ListController) List() []Summary { return slices.Clone(l.items) }

// Loading reports whether the latest refresh is still outstanding.
func (l *ListController) Loading() bool { return l.loading }

// Err returns the error of the latest refresh, cleared by the next success.
func (l *ListController) Err() error { return l.lastErr }
