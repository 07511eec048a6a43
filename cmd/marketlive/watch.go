package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"marketlive/internal/infrastructure/push"
	"marketlive/internal/usecase"
)

var (
	watchLive     bool
	watchMarkRead bool
)

func init() {
	watchCmd.Flags().BoolVar(&watchLive, "live", true, "attach the push channel")
	watchCmd.Flags().BoolVar(&watchMarkRead, "mark-read", false, "mark the conversation read once history is loaded")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch <conversation-id>",
	Short: "Follow a conversation in real time",
	Long:  "Load a conversation's history, then print new messages as the push\nchannel delivers them. On disconnect the scope is re-mounted.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conversationID := args[0]

		eng, err := buildEngine()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store := usecase.NewConversationStore(eng.rest, eng.transport, eng.unread, eng.session)
		defer store.Close()

		var mu sync.Mutex
		printed := make(map[string]bool)
		store.Subscribe(func() {
			mu.Lock()
			defer mu.Unlock()
			for _, m := range store.Messages() {
				if printed[m.ID] {
					continue
				}
				printed[m.ID] = true
				fmt.Printf("[%s] %s: %s\n",
					m.CreatedAt.Local().Format("15:04:05"), m.SenderID, m.Body)
			}
		})

		unsub := eng.unread.Subscribe(func() {
			if total := eng.unread.TotalUnread(); total > 0 {
				fmt.Printf("-- %d unread --\n", total)
			}
		})
		defer unsub()

		disconnected := make(chan struct{}, 1)
		mount := func() error {
			if err := store.Open(ctx, conversationID, watchLive); err != nil {
				return err
			}
			if conn := store.Conn(); conn != nil {
				conn.OnStatus(func(error) {
					select {
					case disconnected <- struct{}{}:
					default:
					}
				})
			}
			return nil
		}

		if err := mount(); err != nil {
			return err
		}

		if watchMarkRead {
			if conn := store.Conn(); conn != nil {
				err = conn.Send(push.Command{Type: push.CommandMarkRead, ConversationID: conversationID})
			} else {
				err = store.MarkRead(ctx)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "mark-read failed: %v\n", err)
			}
		}

		// Reconnection is the owning scope's policy, not the transport's: on
		// a recoverable disconnect the whole scope is re-mounted.
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-disconnected:
				fmt.Fprintln(os.Stderr, "push channel lost, re-mounting...")
				time.Sleep(2 * time.Second)
				if ctx.Err() != nil {
					return nil
				}
				if err := mount(); err != nil {
					fmt.Fprintf(os.Stderr, "re-mount failed: %v\n", err)
					select {
					case disconnected <- struct{}{}:
					default:
					}
				}
			}
		}
	},
}
