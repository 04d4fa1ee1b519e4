package commands

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"samor/internal/app"
)

var (
	configPath       string
	urlFlag          string
	logLevel         string
	logFormat        string
	handshakeTimeout time.Duration
	integrity        string
	group            string
	transcriptPath   string

	appWire *app.Wire
)

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "samor",
		Short:        "Encrypted session client for the samor chat protocol",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd, &cfg)

			logger, err := app.NewLogger(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			w, err := app.NewWire(cfg, logger)
			if err != nil {
				return err
			}
			appWire = w
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if appWire != nil {
				_ = appWire.Logger.Sync()
			}
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&configPath, "config", "", "YAML config file")
	f.StringVar(&urlFlag, "url", "", "websocket endpoint (default ws://127.0.0.1:8000/ws/connect)")
	f.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	f.StringVar(&logFormat, "log-format", "", "json or console")
	f.DurationVar(&handshakeTimeout, "handshake-timeout", 0, "dial plus handshake deadline")
	f.StringVar(&integrity, "integrity", "", "envelope integrity: none or hmac (both ends must match)")
	f.StringVar(&group, "group", "", "Diffie-Hellman group: modp2048 or modp1536")
	f.StringVar(&transcriptPath, "transcript", "", "write the message log to this file on exit")

	root.AddCommand(connectCmd(), sendCmd())
	return root
}

// applyFlags overrides cfg with every flag set on the command line.
func applyFlags(cmd *cobra.Command, cfg *app.Config) {
	f := cmd.Flags()
	if f.Changed("url") {
		cfg.URL = urlFlag
	}
	if f.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if f.Changed("log-format") {
		cfg.LogFormat = logFormat
	}
	if f.Changed("handshake-timeout") {
		cfg.HandshakeTimeout = handshakeTimeout
	}
	if f.Changed("integrity") {
		cfg.Integrity = integrity
	}
	if f.Changed("group") {
		cfg.Group = group
	}
	if f.Changed("transcript") {
		cfg.Transcript = transcriptPath
	}
}

// saveTranscript writes the log if a transcript file is configured.
func saveTranscript() error {
	if appWire.Transcript == nil {
		return nil
	}
	recs := appWire.Session.Log().Records()
	if err := appWire.Transcript.SaveTranscript(recs); err != nil {
		return err
	}
	appWire.Logger.Info("transcript saved", zap.Int("records", len(recs)))
	return nil
}
