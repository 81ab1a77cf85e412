package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"refinery/internal/session"
)

// resultMsg carries a completed effect back into Update.
type resultMsg struct {
	result session.Result
}

// copiedMsg reports the outcome of a clipboard write.
type copiedMsg struct {
	err error
}

func effectCmd(ctx context.Context, eff session.Effect) tea.Cmd {
	return func() tea.Msg {
		return resultMsg{result: eff(ctx)}
	}
}

// run turns session effects into commands. The program context outlives
// every selection; the controllers cancel superseded fetches themselves.
func (m Model) run(effs []session.Effect) tea.Cmd {
	if len(effs) == 0 {
		return nil
	}
	cmds := make([]tea.Cmd, 0, len(effs))
	for _, eff := range effs {
		if eff != nil {
			cmds = append(cmds, effectCmd(m.ctx, eff))
		}
	}
	return tea.Batch(cmds...)
}

func copyCmd(copyFn func(string) error, text string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{err: copyFn(text)}
	}
}
