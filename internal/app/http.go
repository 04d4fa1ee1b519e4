package app

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler routes every configured websocket path to the relay server and
// MetricsPath to the Prometheus registry. Requests are access-logged.
func (r *Relay) Handler(cfg RelayConfig, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	for _, p := range cfg.Paths {
		mux.Handle(p, r.Server)
	}
	if cfg.MetricsPath != "" {
		mux.Handle(cfg.MetricsPath, promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{Registry: r.Registry}))
	}
	return accessLog(mux, logger)
}

func accessLog(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		logger.Debug("http",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.String("remote", req.RemoteAddr),
			zap.Int("status", rec.status),
			zap.Bool("upgraded", rec.hijacked),
			zap.Duration("took", time.Since(start)),
		)
	})
}

// statusRecorder keeps the response status and still lets the websocket
// upgrader take over the connection.
type statusRecorder struct {
	http.ResponseWriter
	status   int
	hijacked bool
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	c, rw, err := h.Hijack()
	if err == nil {
		s.hijacked = true
		s.status = http.StatusSwitchingProtocols
	}
	return c, rw, err
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }
