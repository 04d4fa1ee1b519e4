package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"samor/internal/app"
)

func main() {
	if err := newCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	var (
		configPath       string
		listen           string
		logLevel         string
		logFormat        string
		integrity        string
		group            string
		handshakeTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:          "relay",
		Short:        "Reference websocket server for samor sessions",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(configPath)
			if err != nil {
				return err
			}
			f := cmd.Flags()
			if f.Changed("listen") {
				cfg.Relay.Listen = listen
			}
			if f.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if f.Changed("log-format") {
				cfg.LogFormat = logFormat
			}
			if f.Changed("integrity") {
				cfg.Integrity = integrity
			}
			if f.Changed("group") {
				cfg.Group = group
			}
			if f.Changed("handshake-timeout") {
				cfg.HandshakeTimeout = handshakeTimeout
			}

			logger, err := app.NewLogger(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "YAML config file")
	f.StringVar(&listen, "listen", "", "listen address (default :8000)")
	f.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	f.StringVar(&logFormat, "log-format", "", "json or console")
	f.StringVar(&integrity, "integrity", "", "envelope integrity: none or hmac")
	f.StringVar(&group, "group", "", "Diffie-Hellman group: modp2048 or modp1536")
	f.DurationVar(&handshakeTimeout, "handshake-timeout", 0, "deadline for the client_hello")
	return cmd
}

func serve(ctx context.Context, cfg app.Config, logger *zap.Logger) error {
	r, err := app.NewRelay(cfg, logger)
	if err != nil {
		return err
	}
	httpSrv := &http.Server{
		Addr:              cfg.Relay.Listen,
		Handler:           r.Handler(cfg.Relay, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("relay listening",
			zap.String("addr", cfg.Relay.Listen),
			zap.Strings("paths", cfg.Relay.Paths),
			zap.String("integrity", cfg.Integrity),
			zap.String("group", cfg.Group),
		)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Relay.ShutdownTimeout)
		defer cancel()
		// Hijacked websocket conns are not tracked by Shutdown.
		err := httpSrv.Shutdown(sctx)
		return errors.Join(err, r.Server.Close())
	})
	return g.Wait()
}
