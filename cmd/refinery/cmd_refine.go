package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"refinery/internal/session"
)

var refineChatID string

// refineCmd submits one prompt without the TUI
var refineCmd = &cobra.Command{
	Use:   "refine [text...]",
	Short: "Refine a single prompt and print the result",
	Long: `Sends one prompt to the backend and prints the refined version.

Without --chat a new refinement conversation is created. With --chat the
prompt continues that conversation, using its history as context.

Examples:
  refinery refine todo app react
  refinery refine --chat 5f0c... add offline support`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRefine,
}

func init() {
	refineCmd.Flags().StringVar(&refineChatID, "chat", "", "Continue an existing refinement conversation")
}

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}

func runRefine(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(ctxOrBackground(cmd), appCfg.GetClientTimeout()*2)
	defer cancel()

	ws, err := newWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	if refineChatID != "" {
		id := session.ChatID(refineChatID)
		if err := session.Run(ctx, ws.Apply, ws.Select(id)...); err != nil {
			return err
		}
		if err := ws.Chat.Err(); err != nil {
			return fmt.Errorf("failed to load refinement %s: %w", id, err)
		}
	}

	text := joinArgs(args)
	effs, err := ws.Submit(text)
	if err != nil {
		return fmt.Errorf("nothing to refine: %w", err)
	}
	logger.Debug("submitting", zap.String("chat_id", string(ws.Chat.ActiveID())), zap.Int("chars", len(text)))
	if err := session.Run(ctx, ws.Apply, effs...); err != nil {
		return err
	}
	if err := ws.Chat.Err(); err != nil {
		logger.Warn("refinement failed", zap.Error(err))
		return fmt.Errorf("%s (%w)", session.Banner(err), err)
	}

	reply, _ := ws.Chat.LastReply()
	fmt.Println(reply)
	fmt.Printf("\nchat: %s\n", ws.Chat.ActiveID())
	return nil
}
