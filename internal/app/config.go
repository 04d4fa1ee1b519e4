package app

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"samor/internal/crypto"
	"samor/internal/protocol/mtproto"
)

// EnvTranscriptPassphrase names the variable holding the transcript
// passphrase. It is never read from the config file.
const EnvTranscriptPassphrase = "SAMOR_TRANSCRIPT_PASSPHRASE"

// Config holds runtime options shared by the CLI and the relay.
type Config struct {
	URL              string        `yaml:"url"`
	LogLevel         string        `yaml:"log_level"`
	LogFormat        string        `yaml:"log_format"` // json or console
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	// Integrity selects the envelope codec: "none" or "hmac". Both ends must agree.
	Integrity string `yaml:"integrity"`
	// Group names the DH group: "modp2048" or "modp1536".
	Group string `yaml:"group"`
	// InsecureRandSeed, when non-zero, replaces crypto/rand for private
	// exponents with a seeded generator. Compatibility testing only.
	InsecureRandSeed     uint64 `yaml:"insecure_rand_seed"`
	ClearLogOnDisconnect bool   `yaml:"clear_log_on_disconnect"`
	Transcript           string `yaml:"transcript"`
	TranscriptPassphrase string `yaml:"-"`

	Relay RelayConfig `yaml:"relay"`
}

// RelayConfig configures the reference server.
type RelayConfig struct {
	Listen      string   `yaml:"listen"`
	Paths       []string `yaml:"paths"`
	MetricsPath string   `yaml:"metrics_path"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		URL:              "ws://127.0.0.1:8000/ws/connect",
		LogLevel:         "info",
		LogFormat:        "console",
		HandshakeTimeout: 10 * time.Second,
		Integrity:        "none",
		Group:            "modp2048",
		Relay: RelayConfig{
			Listen:          ":8000",
			Paths:           []string{"/ws/connect", "/api/ws/connect"},
			MetricsPath:     "/metrics",
			ShutdownTimeout: 5 * time.Second,
		},
	}
}

// LoadConfig returns Default overlaid with the YAML file at path (skipped when
// path is empty) and the environment.
func LoadConfig(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if v := os.Getenv(EnvTranscriptPassphrase); v != "" {
		cfg.TranscriptPassphrase = v
	}
	return cfg, cfg.Validate()
}

// Validate checks that every named option resolves.
func (c Config) Validate() error {
	var errs []error
	if c.URL == "" {
		errs = append(errs, errors.New("url is required"))
	}
	if c.HandshakeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("handshake_timeout must be positive, got %s", c.HandshakeTimeout))
	}
	if _, err := mtproto.CodecByName(c.Integrity); err != nil {
		errs = append(errs, err)
	}
	if _, err := crypto.GroupByName(c.Group); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("log_format must be json or console, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}
