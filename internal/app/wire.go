package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"samor/internal/crypto"
	"samor/internal/domain"
	"samor/internal/metrics"
	"samor/internal/protocol/mtproto"
	"samor/internal/relay"
	"samor/internal/services/session"
	"samor/internal/store"
)

// Wire bundles everything the CLI needs for one session.
type Wire struct {
	Config     Config
	Logger     *zap.Logger
	Registry   *prometheus.Registry
	Metrics    *metrics.Collectors
	Session    *session.Manager
	Transcript domain.TranscriptStore // nil unless Config.Transcript is set
}

// NewWire constructs the client dependency graph from cfg.
func NewWire(cfg Config, logger *zap.Logger) (*Wire, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	opts, err := sessionOptions(cfg, logger, m)
	if err != nil {
		return nil, err
	}

	w := &Wire{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Metrics:  m,
		Session:  session.New(relay.NewDialer(), cfg.URL, opts),
	}
	if cfg.Transcript != "" {
		w.Transcript = store.NewTranscriptFileStore(cfg.Transcript, cfg.TranscriptPassphrase)
	}
	return w, nil
}

func sessionOptions(cfg Config, logger *zap.Logger, m *metrics.Collectors) (session.Options, error) {
	codec, err := mtproto.CodecByName(cfg.Integrity)
	if err != nil {
		return session.Options{}, err
	}
	group, err := crypto.GroupByName(cfg.Group)
	if err != nil {
		return session.Options{}, err
	}
	opts := session.Options{
		Logger:               logger,
		Metrics:              m,
		Codec:                codec,
		Group:                group,
		HandshakeTimeout:     cfg.HandshakeTimeout,
		ClearLogOnDisconnect: cfg.ClearLogOnDisconnect,
	}
	if cfg.InsecureRandSeed != 0 {
		logger.Warn("using seeded non-cryptographic randomness for key generation")
		opts.Rand = crypto.NewDeterministicReader(cfg.InsecureRandSeed)
	}
	return opts, nil
}

// Relay bundles the reference server and its metrics registry.
type Relay struct {
	Server   *relay.Server
	Registry *prometheus.Registry
}

// NewRelay builds the reference server with an EchoHandler. The registry also
// carries the Go runtime and process collectors.
func NewRelay(cfg Config, logger *zap.Logger) (*Relay, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	codec, err := mtproto.CodecByName(cfg.Integrity)
	if err != nil {
		return nil, err
	}
	group, err := crypto.GroupByName(cfg.Group)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := relay.ServerOptions{
		Logger:           logger,
		Metrics:          metrics.New(reg),
		Codec:            codec,
		Group:            group,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	if cfg.InsecureRandSeed != 0 {
		logger.Warn("using seeded non-cryptographic randomness for key generation")
		opts.Rand = crypto.NewDeterministicReader(cfg.InsecureRandSeed)
	}

	h := &relay.EchoHandler{}
	srv := relay.NewServer(h, opts)
	h.Broadcaster = srv
	return &Relay{Server: srv, Registry: reg}, nil
}
