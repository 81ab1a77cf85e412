// Package ui holds the lipgloss styles of the refinery terminal client.
package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Light palette
	LightForeground = lipgloss.Color("#101F38")
	LightPrimary    = lipgloss.Color("#3949AB")
	LightAccent     = lipgloss.Color("#00897B")
	LightMuted      = lipgloss.Color("#8A94A6")
	LightBorder     = lipgloss.Color("#D6DAE0")
	LightSelected   = lipgloss.Color("#E8EAF6")

	// Dark palette
	DarkForeground = lipgloss.Color("#F2F2F2")
	DarkPrimary    = lipgloss.Color("#9FA8DA")
	DarkAccent     = lipgloss.Color("#4DB6AC")
	DarkMuted      = lipgloss.Color("#6B7A90")
	DarkBorder     = lipgloss.Color("#2A3850")
	DarkSelected   = lipgloss.Color("#1E2A3D")

	Destructive = lipgloss.Color("#E53935")
	Warning     = lipgloss.Color("#FFC107")
)

// Theme is one color scheme.
type Theme struct {
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	Selected   lipgloss.Color
	IsDark     bool
}

func LightTheme() Theme {
	return Theme{
		Foreground: LightForeground,
		Primary:    LightPrimary,
		Accent:     LightAccent,
		Muted:      LightMuted,
		Border:     LightBorder,
		Selected:   LightSelected,
	}
}

func DarkTheme() Theme {
	return Theme{
		Foreground: DarkForeground,
		Primary:    DarkPrimary,
		Accent:     DarkAccent,
		Muted:      DarkMuted,
		Border:     DarkBorder,
		Selected:   DarkSelected,
		IsDark:     true,
	}
}

// ResolveTheme maps the configured mode (auto, light, dark) to a theme.
// auto inspects COLORFGBG and falls back to dark.
func ResolveTheme(mode string) Theme {
	switch strings.ToLower(mode) {
	case "light":
		return LightTheme()
	case "dark":
		return DarkTheme()
	}
	if parts := strings.Split(os.Getenv("COLORFGBG"), ";"); len(parts) >= 2 {
		if bg, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
			// 0-6 and 8 are the dark ANSI backgrounds
			if (bg >= 0 && bg <= 6) || bg == 8 {
				return DarkTheme()
			}
			return LightTheme()
		}
	}
	return DarkTheme()
}

// Styles holds every styled element of the chat screen.
type Styles struct {
	Theme Theme

	Header  lipgloss.Style
	Footer  lipgloss.Style
	Sidebar lipgloss.Style
	Focused lipgloss.Style
	Content lipgloss.Style

	Title      lipgloss.Style
	Muted      lipgloss.Style
	UserLabel  lipgloss.Style
	UserInput  lipgloss.Style
	BotLabel   lipgloss.Style
	Suggestion lipgloss.Style

	Banner  lipgloss.Style
	Warning lipgloss.Style
	Spinner lipgloss.Style
	Prompt  lipgloss.Style
}

func NewStyles(theme Theme) Styles {
	return Styles{
		Theme: theme,

		Header: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true).
			Padding(0, 1),

		Footer: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 1),

		Sidebar: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),

		Focused: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Primary).
			Padding(0, 1),

		Content: lipgloss.NewStyle().
			Padding(0, 1),

		Title: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true).
			MarginBottom(1),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		UserLabel: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true),

		UserInput: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		BotLabel: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Bold(true),

		Suggestion: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Padding(0, 1),

		Banner: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffffff")).
			Background(Destructive).
			Padding(0, 1).
			Bold(true),

		Warning: lipgloss.NewStyle().
			Foreground(Warning),

		Spinner: lipgloss.NewStyle().
			Foreground(theme.Accent),

		Prompt: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true),
	}
}

// DefaultStyles resolves the theme for mode and builds its styles.
func DefaultStyles(mode string) Styles {
	return NewStyles(ResolveTheme(mode))
}
