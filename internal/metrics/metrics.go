package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "samor"

// Handshake results.
const (
	ResultOK      = "ok"
	ResultInvalid = "invalid_peer_value"
	ResultTimeout = "timeout"
	ResultError   = "error"
)

// Frame directions.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Collectors groups every metric the transport reports.
type Collectors struct {
	handshakes *prometheus.CounterVec
	frames     *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	sessions   prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is what tests usually want.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshakes_total",
			Help:      "Diffie-Hellman handshakes by role and result.",
		}, []string{"role", "result"}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Encrypted data frames by direction.",
		}, []string{"direction"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Inbound frames dropped without reaching the application.",
		}, []string{"reason"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions that completed the handshake and are still open.",
		}),
	}
	if reg != nil {
		reg.MustRegister(c.handshakes, c.frames, c.dropped, c.sessions)
	}
	return c
}

// Handshake counts one finished handshake attempt.
func (c *Collectors) Handshake(role, result string) {
	if c == nil {
		return
	}
	c.handshakes.WithLabelValues(role, result).Inc()
}

// Frame counts one data frame sent or received.
func (c *Collectors) Frame(direction string) {
	if c == nil {
		return
	}
	c.frames.WithLabelValues(direction).Inc()
}

// Dropped counts one discarded inbound frame.
func (c *Collectors) Dropped(reason string) {
	if c == nil {
		return
	}
	c.dropped.WithLabelValues(reason).Inc()
}

func (c *Collectors) SessionOpened() {
	if c == nil {
		return
	}
	c.sessions.Inc()
}

func (c *Collectors) SessionClosed() {
	if c == nil {
		return
	}
	c.sessions.Dec()
}
