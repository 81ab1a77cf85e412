package session

import "context"

// Effect is a deferred backend call. It performs only the remote operation
// and never touches controller state; its Result goes back through Apply.
type Effect func(ctx context.Context) Result

// Result is the completion of an Effect.
type Result interface {
	generation() uint64
}

// HistoryResult completes a history fetch.
type HistoryResult struct {
	gen      uint64
	ID       ChatID
	Messages []Message
	Err      error
}

func (r HistoryResult) generation() uint64 { return r.gen }

// SubmitResult completes a create or continue call.
type SubmitResult struct {
	gen     uint64
	Create  bool
	ID      ChatID
	Content string
	Err     error
}

func (r SubmitResult) generation() uint64 { return r.gen }

// ListResult completes a list refresh.
type ListResult struct {
	gen       uint64
	Summaries []Summary
	Err       error
}

func (r ListResult) generation() uint64 { return r.gen }

// Run executes effects in order on the calling goroutine and feeds every
// result to apply, which may return follow-up effects. It returns when the
// queue is empty or ctx is done.
func Run(ctx context.Context, apply func(Result) []Effect, effects ...Effect) error {
	queue := append([]Effect(nil), effects...)
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		eff := queue[0]
		queue = queue[1:]
		if eff == nil {
			continue
		}
		queue = append(queue, apply(eff(ctx))...)
	}
	return nil
}
