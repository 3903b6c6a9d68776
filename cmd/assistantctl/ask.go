package main

import (
	"fmt"
	"strings"

	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the assistant a question",
	Long:  `Runs one chat turn, in a new session unless --session is given, and prints the answer with the chunks it used.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var (
	askSession  string
	askCategory string
)

func init() {
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "Continue an existing session")
	askCmd.Flags().StringVarP(&askCategory, "category", "c", "", "Restrict retrieval to one category")

	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sessionID := askSession
	if sessionID == "" {
		created, err := services.Chat.CreateSession(ctx)
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		sessionID = created.SessionID
	}

	result, err := services.Chat.PostMessage(ctx, sessionID, &entity.PostMessageRequest{
		Message:  strings.Join(args, " "),
		Category: askCategory,
	})
	if err != nil {
		return fmt.Errorf("turn failed: %w", err)
	}

	cmd.Println(result.ResponseText)
	cmd.Println()
	cmd.Printf("Session: %s\n", result.SessionID)
	cmd.Printf("Phase:   %s\n", result.Phase)
	if len(result.UsedChunkIDs) > 0 {
		cmd.Printf("Sources: %s\n", strings.Join(result.UsedChunkIDs, ", "))
	}
	return nil
}
