package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"marketlive/internal/usecase"
)

func init() {
	rootCmd.AddCommand(sendCmd)
}

var sendCmd = &cobra.Command{
	Use:   "send <conversation-id> <body>",
	Short: "Send a message to a conversation",
	Long:  "Post a message. It appears in feeds only via the push echo, so the\ncommand reports acceptance, not delivery.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		store := usecase.NewConversationStore(eng.rest, eng.transport, eng.unread, eng.session)
		defer store.Close()

		if err := store.Open(ctx, args[0], false); err != nil {
			// A failed history load does not block the send attempt.
			fmt.Fprintf(os.Stderr, "warning: history load failed: %v\n", err)
		}

		if err := store.Send(ctx, args[1]); err != nil {
			return err
		}

		fmt.Println("accepted")
		return nil
	},
}
