package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
)

// send <method> [key=value ...]: one request, then print the replies.
func sendCmd() *cobra.Command {
	var (
		wait    int
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "send <method> [key=value ...]",
		Short: "Connect, send one request and print the replies",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := parseRequest(args)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			sess := appWire.Session
			if err := sess.Connect(ctx); err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.Send(req); err != nil {
				return err
			}

			wctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			var seen uint64
			for printed := 0; printed < wait; {
				recs, err := sess.Log().Wait(wctx, seen)
				if err != nil {
					_ = saveTranscript()
					return fmt.Errorf("waiting for reply: %w", err)
				}
				for _, r := range recs {
					fmt.Fprintln(cmd.OutOrStdout(), formatRecord(r))
					seen = r.Seq
					printed++
				}
			}
			return saveTranscript()
		},
	}
	cmd.Flags().IntVar(&wait, "wait", 1, "number of messages to wait for")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "how long to wait for replies")
	return cmd
}
