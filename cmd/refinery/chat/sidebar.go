package chat

import (
	"github.com/charmbracelet/bubbles/list"

	"refinery/cmd/refinery/ui"
	"refinery/internal/session"
)

const untitled = "New Refinement"

// chatItem is one sidebar entry.
type chatItem struct {
	summary session.Summary
	active  bool
}

func (i chatItem) Title() string {
	title := i.summary.Title
	if title == "" {
		title = untitled
	}
	if i.active {
		return "● " + title
	}
	return title
}

func (i chatItem) Description() string {
	if i.summary.CreatedAt.IsZero() {
		return ""
	}
	return i.summary.CreatedAt.Local().Format("Jan 2")
}

func (i chatItem) FilterValue() string { return i.summary.Title }

func newSidebar(styles ui.Styles) list.Model {
	d := list.NewDefaultDelegate()
	d.Styles.SelectedTitle = d.Styles.SelectedTitle.
		Foreground(styles.Theme.Primary).
		BorderForeground(styles.Theme.Primary)
	d.Styles.SelectedDesc = d.Styles.SelectedDesc.
		Foreground(styles.Theme.Muted).
		BorderForeground(styles.Theme.Primary)

	l := list.New(nil, d, sidebarWidth-4, 20)
	l.Title = "Refinements"
	l.Styles.Title = styles.Title
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	return l
}

// setSidebarItems replaces the entries and keeps the cursor on the same
// conversation when it is still listed.
func setSidebarItems(l list.Model, summaries []session.Summary, active session.ChatID) list.Model {
	var cursorID session.ChatID
	if it, ok := l.SelectedItem().(chatItem); ok {
		cursorID = it.summary.ID
	}

	items := make([]list.Item, 0, len(summaries))
	cursor := -1
	for i, s := range summaries {
		items = append(items, chatItem{summary: s, active: s.ID == active})
		if s.ID == cursorID {
			cursor = i
		}
	}
	l.SetItems(items)
	if cursor >= 0 {
		l.Select(cursor)
	}
	return l
}

func selectedChat(l list.Model) (session.ChatID, bool) {
	it, ok := l.SelectedItem().(chatItem)
	if !ok {
		return "", false
	}
	return it.summary.ID, true
}
