package chat

import (
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// handleKeyMsg routes keyboard input. Global keys are handled first; the rest
// goes to the focused pane.
func (m Model) handleKeyMsg(msg tea.KeyMsg) (Model, tea.Cmd) {
	// Bracketed paste is text, never a command.
	if msg.Paste {
		if m.focus != focusInput {
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch msg.Type {
	case tea.KeyCtrlC:
		m.Close()
		return m, tea.Quit

	case tea.KeyEsc:
		if m.focus == focusSidebar {
			return m.focusInputPane()
		}
		m.Close()
		return m, tea.Quit

	case tea.KeyTab:
		if m.focus == focusInput {
			m.focus = focusSidebar
			m.input.Blur()
			return m, nil
		}
		return m.focusInputPane()

	case tea.KeyCtrlN:
		m.status = ""
		effs := m.ws.NewChat()
		var focusCmd tea.Cmd
		m, focusCmd = m.focusInputPane()
		return m.refresh(), tea.Batch(m.run(effs), focusCmd)

	case tea.KeyCtrlR:
		return m.refresh(), m.run(m.ws.Reload())

	case tea.KeyCtrlY:
		reply, ok := m.ws.Chat.LastReply()
		if !ok {
			m.status = "Nothing to copy yet"
			return m, nil
		}
		return m, copyCmd(m.copy, reply)

	case tea.KeyCtrlJ:
		if m.focus == focusInput {
			m.input.InsertString("\n")
		}
		return m, nil
	}

	if m.focus == focusSidebar {
		return m.handleSidebarKey(msg)
	}
	return m.handleInputKey(msg)
}

func (m Model) handleInputKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if msg.Type == tea.KeyEnter {
		if msg.Alt {
			m.input.InsertString("\n")
			return m, nil
		}
		return m.submit()
	}

	if idx, ok := suggestionIndex(msg); ok && m.showWelcome() && m.input.Value() == "" {
		m.input.SetValue(Suggestions[idx])
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if msg.Type == tea.KeyEnter {
		id, ok := selectedChat(m.sidebar)
		if !ok {
			return m, nil
		}
		m.status = ""
		effs := m.ws.Select(id)
		var focusCmd tea.Cmd
		m, focusCmd = m.focusInputPane()
		return m.refresh(), tea.Batch(m.run(effs), focusCmd)
	}

	var cmd tea.Cmd
	m.sidebar, cmd = m.sidebar.Update(msg)
	return m, cmd
}

// submit hands the input to the workspace. Rejected submissions leave the
// input untouched.
func (m Model) submit() (Model, tea.Cmd) {
	effs, err := m.ws.Submit(m.input.Value())
	if err != nil {
		m.log.Debug("submit rejected", zap.Error(err))
		return m, nil
	}
	m.input.Reset()
	m.status = ""
	return m.refresh(), m.run(effs)
}

func (m Model) focusInputPane() (Model, tea.Cmd) {
	if m.focus == focusInput {
		return m, nil
	}
	m.focus = focusInput
	return m, m.input.Focus()
}

func suggestionIndex(msg tea.KeyMsg) (int, bool) {
	if msg.Type != tea.KeyRunes || len(msg.Runes) != 1 {
		return 0, false
	}
	r := msg.Runes[0]
	if r < '1' || int(r-'1') >= len(Suggestions) {
		return 0, false
	}
	return int(r - '1'), true
}
