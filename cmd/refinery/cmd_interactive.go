package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"refinery/cmd/refinery/chat"
	"refinery/cmd/refinery/ui"
	"refinery/internal/logging"
	"refinery/internal/session"
)

// runInteractiveChat launches the chat TUI.
func runInteractiveChat(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	logging.Boot("starting chat as %s against %s", appCfg.Client.UserID, appCfg.Client.BaseURL)
	ws := session.NewWorkspace(
		session.UserID(appCfg.Client.UserID),
		client,
		logging.Get(logging.CategorySession),
	)

	m := chat.New(chat.Config{
		Workspace: ws,
		Styles:    ui.DefaultStyles(appCfg.Client.Theme),
		WordWrap:  appCfg.Client.WordWrap,
		Logger:    logger,
	})
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logging.BootError("chat exited: %v", err)
		return fmt.Errorf("chat interface failed: %w", err)
	}
	logging.UI("chat closed")
	return nil
}
