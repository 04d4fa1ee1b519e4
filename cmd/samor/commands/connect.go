package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"samor/internal/domain"
	"samor/internal/services/session"
)

var errDisconnected = errors.New("disconnected by peer")

// connect: interactive session. Each input line is a request; every decrypted
// message is printed as it arrives.
func connectCmd() *cobra.Command {
	var drain time.Duration
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Open a session and exchange requests interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			sess := appWire.Session
			if err := sess.Connect(ctx); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "connected: session %s, key %s\n", sess.SessionID(), sess.AuthKeyFingerprint())

			err := runInteractive(ctx, sess, cmd.InOrStdin(), out, appWire.Logger, drain)
			_ = sess.Close()
			if serr := saveTranscript(); serr != nil {
				err = errors.Join(err, serr)
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&drain, "timeout", 10*time.Second, "how long to wait for replies once input ends")
	return cmd
}

// runInteractive pumps requests from in and messages to out until ctx ends or
// the session drops. Once in is exhausted it waits up to drain for a reply to
// every request sent, then returns io.EOF.
func runInteractive(ctx context.Context, sess *session.Manager, in io.Reader, out io.Writer, log *zap.Logger, drain time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	var printed atomic.Int64
	progress := make(chan struct{}, 1)
	g.Go(func() error {
		for r := range sess.Log().Subscribe(ctx) {
			fmt.Fprintln(out, formatRecord(r))
			printed.Add(1)
			select {
			case progress <- struct{}{}:
			default:
			}
		}
		return nil
	})

	g.Go(func() error {
		if err := sess.WaitStatus(ctx, domain.StatusDisconnected); err != nil {
			return err
		}
		return errDisconnected
	})

	g.Go(func() error {
		want := int64(sess.Log().Len())
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case line, ok := <-lines:
				if !ok {
					return awaitReplies(ctx, &printed, want, progress, drain)
				}
				line = strings.TrimSpace(line)
				if line == "" {
					continue
				}
				req, err := parseRequest(strings.Fields(line))
				if err != nil {
					fmt.Fprintln(out, "!", err)
					continue
				}
				if err := sess.Send(req); err != nil {
					log.Warn("send failed", zap.String("method", req.Method), zap.Error(err))
					continue
				}
				want++
			}
		}
	})

	return g.Wait()
}

// awaitReplies returns io.EOF once printed reaches want or drain elapses.
func awaitReplies(ctx context.Context, printed *atomic.Int64, want int64, progress <-chan struct{}, drain time.Duration) error {
	timer := time.NewTimer(drain)
	defer timer.Stop()
	for printed.Load() < want {
		select {
		case <-progress:
		case <-timer.C:
			return io.EOF
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return io.EOF
}
