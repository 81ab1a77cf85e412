package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"refinery/internal/session"
)

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	pane := lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.renderStatus(),
		m.renderBanner(),
		m.input.View(),
		m.renderFooter(),
	)
	if !m.showSidebar() {
		return pane
	}

	frame := m.styles.Sidebar
	if m.focus == focusSidebar {
		frame = m.styles.Focused
	}
	side := frame.Width(sidebarWidth - 2).Height(m.height - 2).Render(m.renderSidebar())
	return lipgloss.JoinHorizontal(lipgloss.Top, side, pane)
}

func (m Model) renderHeader() string {
	title := "Prompt Refinery"
	if id := m.ws.Chat.ActiveID(); !id.IsZero() {
		title += m.styles.Muted.Render(" · " + m.activeTitle(id))
	}
	return m.styles.Header.Render(title)
}

func (m Model) activeTitle(id session.ChatID) string {
	for _, s := range m.ws.List.List() {
		if s.ID == id && s.Title != "" {
			return s.Title
		}
	}
	return untitled
}

func (m Model) renderSidebar() string {
	if len(m.sidebar.Items()) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left,
			m.styles.Title.Render("Refinements"),
			m.styles.Muted.Render("No previous refinings"),
		)
	}
	return m.sidebar.View()
}

// renderMessages draws the conversation, or the welcome screen when nothing
// is selected yet.
func (m Model) renderMessages() string {
	if m.showWelcome() {
		return m.renderWelcome()
	}

	var sb strings.Builder
	for _, msg := range m.ws.Chat.Messages() {
		switch msg.Role {
		case session.RoleUser:
			sb.WriteString(m.styles.UserLabel.Render("You") + "\n")
			sb.WriteString(m.styles.UserInput.Render(msg.Content))
			sb.WriteString("\n\n")
		default:
			sb.WriteString(m.styles.BotLabel.Render("Refinery") + "\n")
			sb.WriteString(m.safeRenderMarkdown(msg.Content))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (m Model) showWelcome() bool {
	c := m.ws.Chat
	return c.ActiveID().IsZero() && c.Phase() == session.PhaseIdle && len(c.Messages()) == 0
}

func (m Model) renderWelcome() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Refine Everything."))
	sb.WriteString("\n")
	sb.WriteString(m.styles.Muted.Render(`Turn your "lazy" inputs into production-ready prompts.`))
	sb.WriteString("\n\n")
	for i, s := range Suggestions {
		sb.WriteString(m.styles.Suggestion.Render(fmt.Sprintf("[%d] %s", i+1, s)))
		sb.WriteString("\n")
	}
	return sb.String()
}

// safeRenderMarkdown renders markdown and falls back to plain text when the
// renderer fails or panics.
func (m Model) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Sugar().Warnf("markdown render panic: %v", r)
			result = content
		}
	}()

	if m.renderer != nil && content != "" {
		rendered, err := m.renderer.Render(content)
		if err == nil {
			return strings.TrimRight(rendered, "\n")
		}
	}
	return content
}

func (m Model) renderStatus() string {
	switch m.ws.Chat.Phase() {
	case session.PhaseSubmitting:
		return m.spinner.View() + " Processing"
	case session.PhaseLoadingHistory:
		return m.spinner.View() + " Loading history"
	}
	if m.status != "" {
		return m.styles.Muted.Render(m.status)
	}
	if m.ws.List.Err() != nil {
		return m.styles.Muted.Render("Could not refresh refinements")
	}
	return ""
}

func (m Model) renderBanner() string {
	text := session.Banner(m.ws.Chat.Err())
	if text == "" {
		return ""
	}
	return m.styles.Banner.Render(text)
}

func (m Model) renderFooter() string {
	help := "enter refine · alt+enter newline · tab sidebar · ctrl+n new · ctrl+y copy · ctrl+r reload · esc quit"
	return m.styles.Footer.Render(help)
}
