package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"samor/internal/crypto"
	"samor/internal/domain"
	"samor/internal/metrics"
	"samor/internal/protocol/mtproto"
	"samor/internal/protocol/wire"
	"samor/internal/services/message"
	"samor/internal/util/memzero"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	role                    = "server"
)

var (
	ErrUnexpectedFrame = errors.New("expected client_hello")
	ErrUnknownSession  = errors.New("unknown session")
	ErrServerClosed    = errors.New("server closed")
)

// ServerOptions configures a Server. The zero value is usable.
type ServerOptions struct {
	Logger  *zap.Logger
	Metrics *metrics.Collectors
	Codec   mtproto.Codec
	Group   crypto.Group
	Rand    io.Reader
	// HandshakeTimeout bounds the wait for client_hello.
	HandshakeTimeout time.Duration
	// CheckOrigin overrides the upgrader's same-origin check.
	CheckOrigin func(r *http.Request) bool
}

// Server accepts websocket connections and runs one encrypted session per
// connection.
type Server struct {
	handler  domain.RequestHandler
	opts     ServerOptions
	codec    mtproto.Codec
	log      *zap.Logger
	metrics  *metrics.Collectors
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	sessions map[string]*peer
	conns    map[*Conn]struct{}
	closed   bool
}

// peer is one established session.
type peer struct {
	id   string
	conn *Conn

	mu      sync.Mutex
	authKey []byte
}

// NewServer builds a Server that dispatches requests to handler.
func NewServer(handler domain.RequestHandler, opts ServerOptions) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Codec == nil {
		opts.Codec = mtproto.Plain{}
	}
	if opts.Group.IsZero() {
		opts.Group = crypto.Group14()
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		handler:  handler,
		opts:     opts,
		codec:    opts.Codec,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		upgrader: websocket.Upgrader{CheckOrigin: opts.CheckOrigin},
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*peer),
		conns:    make(map[*Conn]struct{}),
	}
}

// ServeHTTP upgrades the request and serves the session until the connection
// ends.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	conn := newConn(ws)
	if !s.track(conn) {
		_ = conn.CloseWithCode(websocket.CloseGoingAway, "server closed")
		return
	}
	defer s.untrack(conn)

	s.serve(conn, r.RemoteAddr)
}

func (s *Server) serve(conn *Conn, remote string) {
	defer conn.Close()

	id := uuid.NewString()
	log := s.log.With(zap.String("session_id", id), zap.String("remote", remote))

	authKey, err := s.handshake(conn, id)
	if err != nil {
		log.Warn("handshake failed", zap.Error(err))
		return
	}
	p := &peer{id: id, conn: conn, authKey: authKey}
	s.add(p)
	defer s.remove(p)
	log.Info("session established", zap.String("auth_key_fp", crypto.Fingerprint(authKey)))

	for {
		b, err := conn.ReadMessage()
		if err != nil {
			log.Debug("connection closed", zap.Error(err))
			return
		}
		s.handleFrame(log, p, b)
	}
}

// handshake waits for client_hello, answers with server_hello and returns the
// session AuthKey.
func (s *Server) handshake(conn *Conn, id string) ([]byte, error) {
	if err := conn.setReadDeadline(time.Now().Add(s.opts.HandshakeTimeout)); err != nil {
		return nil, err
	}
	b, err := conn.ReadMessage()
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			s.metrics.Handshake(role, metrics.ResultTimeout)
		} else {
			s.metrics.Handshake(role, metrics.ResultError)
		}
		return nil, fmt.Errorf("read client_hello: %w", err)
	}
	if err := conn.setReadDeadline(time.Time{}); err != nil {
		return nil, err
	}

	reject := func(result string, err error) ([]byte, error) {
		s.metrics.Handshake(role, result)
		_ = conn.CloseWithCode(CloseProtocolError, "handshake failed")
		return nil, err
	}

	f, err := wire.Decode(b)
	if err != nil {
		return reject(metrics.ResultError, err)
	}
	if f.Kind() != wire.KindClientHello {
		return reject(metrics.ResultError, fmt.Errorf("%w, got %s", ErrUnexpectedFrame, f.Kind()))
	}
	hello, err := f.ClientHello()
	if err != nil {
		return reject(metrics.ResultError, err)
	}
	pub, err := crypto.ParsePublic(hello.PublicKey)
	if err != nil {
		return reject(metrics.ResultInvalid, err)
	}

	kp, err := crypto.GenerateKeyPair(s.opts.Group, s.opts.Rand)
	if err != nil {
		return reject(metrics.ResultError, err)
	}
	defer kp.Destroy()

	authKey, err := kp.SharedSecret(pub)
	if err != nil {
		return reject(metrics.ResultInvalid, err)
	}
	if err := conn.WriteMessage(wire.EncodeServerHello(kp.PublicString(), id)); err != nil {
		memzero.Zero(authKey)
		s.metrics.Handshake(role, metrics.ResultError)
		return nil, fmt.Errorf("send server_hello: %w", err)
	}
	s.metrics.Handshake(role, metrics.ResultOK)
	return authKey, nil
}

func (s *Server) handleFrame(log *zap.Logger, p *peer, b []byte) {
	f, err := wire.Decode(b)
	if err != nil {
		s.drop(log, "malformed_frame", err)
		return
	}
	if f.Kind() != wire.KindData {
		s.drop(log, "unexpected_frame", fmt.Errorf("%s after handshake", f.Kind()))
		return
	}
	env, err := f.Envelope()
	if err != nil {
		s.drop(log, "bad_hex", err)
		return
	}

	p.mu.Lock()
	plain, err := s.codec.Open(p.authKey, env)
	p.mu.Unlock()
	if err != nil {
		s.drop(log, mtproto.FailureReason(err), err)
		return
	}
	req, err := message.ParseRequest(plain)
	if err != nil {
		s.drop(log, "undecodable_message", err)
		return
	}
	s.metrics.Frame(metrics.DirectionIn)

	reply, err := s.handler.Handle(s.ctx, p.id, req)
	if err != nil {
		log.Error("request failed", zap.String("method", req.Method), zap.Error(err))
		reply = errorReply("Internal error")
	}
	if reply == nil {
		return
	}
	if err := s.send(p, reply); err != nil {
		log.Warn("reply failed", zap.String("method", req.Method), zap.Error(err))
	}
}

func (s *Server) drop(log *zap.Logger, reason string, err error) {
	s.metrics.Dropped(reason)
	log.Warn("frame dropped", zap.String("reason", reason), zap.Error(err))
}

// send encrypts v for p and writes it as a data frame.
func (s *Server) send(p *peer, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}
	p.mu.Lock()
	if p.authKey == nil {
		p.mu.Unlock()
		return ErrUnknownSession
	}
	env, err := s.codec.Seal(p.authKey, payload)
	p.mu.Unlock()
	if err != nil {
		return err
	}
	if err := p.conn.WriteMessage(wire.EncodeData(env)); err != nil {
		return err
	}
	s.metrics.Frame(metrics.DirectionOut)
	return nil
}

// SendTo pushes v to one established session.
func (s *Server) SendTo(sessionID string, v any) error {
	s.mu.RLock()
	p, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	return s.send(p, v)
}

// Broadcast pushes v to every established session and reports how many
// received it.
func (s *Server) Broadcast(v any) int {
	s.mu.RLock()
	peers := make([]*peer, 0, len(s.sessions))
	for _, p := range s.sessions {
		peers = append(peers, p)
	}
	s.mu.RUnlock()

	n := 0
	for _, p := range peers {
		if err := s.send(p, v); err != nil {
			s.log.Warn("broadcast failed", zap.String("session_id", p.id), zap.Error(err))
			continue
		}
		n++
	}
	return n
}

// Sessions reports the number of established sessions.
func (s *Server) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// SessionIDs lists the established sessions.
func (s *Server) SessionIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Close disconnects every client and waits for their sessions to end. New
// connections are refused afterwards.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrServerClosed
	}
	s.closed = true
	conns := make([]*Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	s.cancel()
	for _, c := range conns {
		_ = c.CloseWithCode(websocket.CloseGoingAway, "server shutting down")
	}
	s.wg.Wait()
	return nil
}

func (s *Server) track(c *Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c *Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Server) add(p *peer) {
	s.mu.Lock()
	s.sessions[p.id] = p
	s.mu.Unlock()
	s.metrics.SessionOpened()
}

func (s *Server) remove(p *peer) {
	s.mu.Lock()
	delete(s.sessions, p.id)
	s.mu.Unlock()

	p.mu.Lock()
	memzero.Zero(p.authKey)
	p.authKey = nil
	p.mu.Unlock()
	s.metrics.SessionClosed()
}

var (
	_ http.Handler       = (*Server)(nil)
	_ domain.Broadcaster = (*Server)(nil)
)
