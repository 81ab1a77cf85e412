// Package chat is the interactive terminal client of the refinery.
//   - model.go: model, construction and layout
//   - update.go: the Update loop
//   - keys.go: keyboard handling
//   - commands.go: session effects as tea commands
//   - sidebar.go: the conversation list
//   - view.go: rendering
package chat

import (
	"context"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"refinery/cmd/refinery/ui"
	"refinery/internal/session"
)

// Suggestions fill the empty input from the welcome screen.
var Suggestions = []string{
	"Write a SaaS landing page",
	"Fix my React code",
	"Code an API in Python",
}

const (
	sidebarWidth   = 30
	minSplitWidth  = 70
	inputHeight    = 3
	defaultWrap    = 80
	reservedHeight = inputHeight + 6 // header, status, banner, borders, footer
)

type focus int

const (
	focusInput focus = iota
	focusSidebar
)

// Config configures the chat model.
type Config struct {
	Workspace *session.Workspace
	Styles    ui.Styles
	WordWrap  int
	Logger    *zap.Logger
	// Copy writes text to the system clipboard. Defaults to atotto/clipboard.
	Copy func(string) error
}

// Model is the bubbletea model of the chat screen.
type Model struct {
	ws     *session.Workspace
	styles ui.Styles
	log    *zap.Logger
	copy   func(string) error

	ctx    context.Context
	cancel context.CancelFunc

	input    textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	sidebar  list.Model
	renderer *glamour.TermRenderer

	width, height int
	wrap          int
	ready         bool
	focus         focus
	status        string
}

func New(cfg Config) Model {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	copyFn := cfg.Copy
	if copyFn == nil {
		copyFn = clipboard.WriteAll
	}
	wrap := cfg.WordWrap
	if wrap <= 0 {
		wrap = defaultWrap
	}
	styles := cfg.Styles

	ta := textarea.New()
	ta.Placeholder = "Describe what you want... (Enter to refine, Alt+Enter for a new line)"
	ta.Prompt = "┃ "
	ta.ShowLineNumbers = false
	ta.CharLimit = 8192
	ta.SetHeight(inputHeight)
	ta.SetWidth(defaultWrap)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	ctx, cancel := context.WithCancel(context.Background())
	return Model{
		ws:       cfg.Workspace,
		styles:   styles,
		log:      log,
		copy:     copyFn,
		ctx:      ctx,
		cancel:   cancel,
		input:    ta,
		viewport: viewport.New(defaultWrap, 20),
		spinner:  sp,
		sidebar:  newSidebar(styles),
		wrap:     wrap,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick, m.run(m.ws.Start()))
}

// resize lays out the panes for the terminal size.
func (m Model) resize(width, height int) Model {
	m.width, m.height = width, height

	chatWidth := width
	if m.showSidebar() {
		chatWidth = width - sidebarWidth - 2
		m.sidebar.SetSize(sidebarWidth-4, height-4)
	}
	vpHeight := height - reservedHeight
	if vpHeight < 3 {
		vpHeight = 3
	}

	if !m.ready {
		m.viewport = viewport.New(chatWidth-2, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = chatWidth - 2
		m.viewport.Height = vpHeight
	}
	m.input.SetWidth(chatWidth - 4)

	wrap := min(m.wrap, chatWidth-6)
	if wrap < 20 {
		wrap = 20
	}
	m.renderer = newRenderer(m.styles.Theme.IsDark, wrap)
	return m.refresh()
}

func (m Model) showSidebar() bool {
	return m.width >= minSplitWidth
}

func newRenderer(dark bool, wrap int) *glamour.TermRenderer {
	style := "light"
	if dark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return nil
	}
	return r
}

// refresh re-derives the widgets from the workspace state.
func (m Model) refresh() Model {
	m.sidebar = setSidebarItems(m.sidebar, m.ws.List.List(), m.ws.Chat.ActiveID())
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
	return m
}

// Close cancels effects still in flight.
func (m Model) Close() {
	m.cancel()
	m.ws.Close()
}
