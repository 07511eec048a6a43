package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"marketlive/internal/usecase"
)

var (
	listArchived bool
	listFollow   bool
	listPoll     time.Duration
)

func init() {
	listCmd.Flags().BoolVar(&listArchived, "archived", false, "show the archived partition")
	listCmd.Flags().BoolVar(&listFollow, "follow", false, "keep polling and re-render on changes")
	listCmd.Flags().DurationVar(&listPoll, "poll", 30*time.Second, "poll interval in follow mode")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the transactions list",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine()
		if err != nil {
			return err
		}

		syncer := usecase.NewTransactionListSynchronizer(
			eng.rest, eng.unread, listPoll, eng.cfg.StaleAfter, eng.cfg.PollRetries)

		render := func() {
			items, err := syncer.Items(listArchived)
			if err != nil {
				fmt.Fprintf(os.Stderr, "list error: %v\n", err)
			}
			for _, it := range items {
				badge := ""
				if n := eng.unread.CountFor(it.ConversationID); n > 0 {
					badge = fmt.Sprintf("  [%d unread]", n)
				}
				fmt.Printf("%-10s %-12s %-17s %s%s\n",
					it.ID, it.CounterpartName,
					it.LastActivityAt.Local().Format("2006-01-02 15:04"),
					it.LastMessage, badge)
			}
		}

		if !listFollow {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := syncer.Refresh(ctx, listArchived, true); err != nil {
				return err
			}
			render()
			return nil
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		unsub := syncer.Subscribe(render)
		defer unsub()

		syncer.Run(ctx, listArchived)
		return nil
	},
}
