package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"refinery/internal/logging"
	"refinery/internal/session"
)

// sessionsCmd lists and shows refinement conversations
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List and inspect your refinements",
	Long: `List and inspect the refinement conversations stored by the backend.

Subcommands:
  list   - List your most recent refinements
  show   - Print the history of one refinement`,
	RunE: runSessionsList,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your most recent refinements",
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <chat-id>",
	Short: "Print the history of one refinement",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd)
}

func newWorkspace() (*session.Workspace, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	return session.NewWorkspace(
		session.UserID(appCfg.Client.UserID),
		client,
		logging.Get(logging.CategorySession),
	), nil
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	ws, err := newWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	if err := session.Run(ctxOrBackground(cmd), ws.Apply, ws.Start()...); err != nil {
		return err
	}
	if err := ws.List.Err(); err != nil {
		return fmt.Errorf("failed to list refinements: %w", err)
	}

	chats := ws.List.List()
	if len(chats) == 0 {
		fmt.Println("No previous refinings.")
		return nil
	}

	fmt.Println("Refinements")
	fmt.Println(strings.Repeat("─", 60))
	for _, c := range chats {
		title := c.Title
		if title == "" {
			title = "New Refinement"
		}
		date := ""
		if !c.CreatedAt.IsZero() {
			date = c.CreatedAt.Local().Format("Jan 2")
		}
		fmt.Printf("  %-6s  %s  %s\n", date, c.ID, title)
	}
	fmt.Println(strings.Repeat("─", 60))
	fmt.Printf("Total: %d\n", len(chats))
	fmt.Println("\nUse: refinery sessions show <chat-id>")
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	ws, err := newWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	id := session.ChatID(args[0])
	if err := session.Run(ctxOrBackground(cmd), ws.Apply, ws.Select(id)...); err != nil {
		return err
	}
	if err := ws.Chat.Err(); err != nil {
		return fmt.Errorf("failed to load refinement %s: %w", id, err)
	}

	msgs := ws.Chat.Messages()
	if len(msgs) == 0 {
		fmt.Printf("Refinement %s has no messages.\n", id)
		return nil
	}
	for _, m := range msgs {
		label := "You"
		if m.Role == session.RoleAssistant {
			label = "Refinery"
		}
		fmt.Printf("── %s\n%s\n\n", label, m.Content)
	}
	return nil
}

func ctxOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
