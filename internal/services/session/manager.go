package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"samor/internal/crypto"
	"samor/internal/domain"
	"samor/internal/metrics"
	"samor/internal/protocol/mtproto"
	"samor/internal/protocol/wire"
	"samor/internal/services/message"
	"samor/internal/util/memzero"
)

// DefaultHandshakeTimeout bounds dial plus handshake when Options leaves it unset.
const DefaultHandshakeTimeout = 10 * time.Second

const role = "client"

var (
	ErrNotConnected     = errors.New("session not connected")
	ErrAlreadyConnected = errors.New("session already connecting or connected")
	ErrHandshakeTimeout = errors.New("handshake timed out")
	ErrConnectionClosed = errors.New("connection closed")

	errClosing = errors.New("closed by caller")
)

// Options configures a Manager. The zero value is usable.
type Options struct {
	Logger  *zap.Logger
	Metrics *metrics.Collectors
	// Codec defaults to mtproto.Plain.
	Codec mtproto.Codec
	// Group defaults to crypto.Group14.
	Group crypto.Group
	// Rand is the source for private exponents; nil means crypto/rand.
	Rand             io.Reader
	HandshakeTimeout time.Duration
	// ClearLogOnDisconnect drops the Log contents when a connection ends.
	ClearLogOnDisconnect bool
}

// Manager is the client transport state machine. It is safe for concurrent use.
type Manager struct {
	dialer  domain.Dialer
	url     string
	opts    Options
	codec   mtproto.Codec
	log     *zap.Logger
	metrics *metrics.Collectors
	records *Log

	mu          sync.Mutex
	status      domain.Status
	changed     chan struct{}
	conn        domain.Conn
	done        chan struct{}
	abort       context.CancelCauseFunc
	dialing     chan struct{}
	authKey     []byte
	sessionID   string
	fingerprint string
}

// New builds a disconnected Manager for url.
func New(dialer domain.Dialer, url string, opts Options) *Manager {
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
	return &Manager{
		dialer:  dialer,
		url:     url,
		opts:    opts,
		codec:   opts.Codec,
		log:     opts.Logger.With(zap.String("url", url)),
		metrics: opts.Metrics,
		records: NewLog(),
		status:  domain.StatusDisconnected,
		changed: make(chan struct{}),
	}
}

// Connect dials the endpoint and performs the handshake. It returns once the
// session is connected, or with an error after which the Manager is
// disconnected again. Close aborts a Connect in progress.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.status != domain.StatusDisconnected {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	m.setStatusLocked(domain.StatusHandshaking)
	cctx, abort := context.WithCancelCause(ctx)
	dialing := make(chan struct{})
	m.abort, m.dialing = abort, dialing
	m.mu.Unlock()
	defer abort(nil)

	hctx, cancel := context.WithTimeout(cctx, m.opts.HandshakeTimeout)
	defer cancel()

	kp, err := crypto.GenerateKeyPair(m.opts.Group, m.opts.Rand)
	var conn domain.Conn
	if err == nil {
		conn, err = m.dialer.Dial(hctx, m.url)
		if err != nil {
			err = fmt.Errorf("dial %s: %w", m.url, err)
		}
	}

	done := make(chan struct{})
	m.mu.Lock()
	m.abort, m.dialing = nil, nil
	closed := errors.Is(context.Cause(cctx), errClosing)
	if closed || err != nil {
		if conn != nil {
			_ = conn.Close()
		}
		kp.Destroy()
		m.setStatusLocked(domain.StatusDisconnected)
		m.mu.Unlock()
		close(dialing)
		m.metrics.Handshake(role, metrics.ResultError)
		switch {
		case closed:
			return ErrConnectionClosed
		case hctx.Err() != nil && ctx.Err() == nil:
			return ErrHandshakeTimeout
		}
		return err
	}
	m.conn, m.done = conn, done
	m.mu.Unlock()
	close(dialing)

	hs := make(chan error, 1)
	go m.readLoop(conn, kp, hs, done)

	if err := conn.WriteMessage(wire.EncodeClientHello(kp.PublicString())); err != nil {
		_ = conn.Close()
		<-done
		m.metrics.Handshake(role, metrics.ResultError)
		return fmt.Errorf("send client_hello: %w", err)
	}
	m.log.Debug("client_hello sent")

	select {
	case err := <-hs:
		return m.handshakeResult(err, done)
	case <-hctx.Done():
		// A handshake that completed at the deadline still wins.
		select {
		case err := <-hs:
			return m.handshakeResult(err, done)
		default:
		}
		_ = conn.Close()
		<-done
		if ctx.Err() != nil {
			m.metrics.Handshake(role, metrics.ResultError)
			return ctx.Err()
		}
		m.metrics.Handshake(role, metrics.ResultTimeout)
		m.log.Warn("handshake timed out", zap.Duration("timeout", m.opts.HandshakeTimeout))
		return ErrHandshakeTimeout
	}
}

func (m *Manager) handshakeResult(err error, done <-chan struct{}) error {
	if err == nil {
		m.metrics.Handshake(role, metrics.ResultOK)
		return nil
	}
	<-done
	if errors.Is(err, crypto.ErrInvalidPeerValue) {
		m.metrics.Handshake(role, metrics.ResultInvalid)
	} else {
		m.metrics.Handshake(role, metrics.ResultError)
	}
	return err
}

// Send encrypts v as JSON and writes it as a data frame. It is a no-op
// returning ErrNotConnected unless the session is connected; nothing is
// queued.
func (m *Manager) Send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	m.mu.Lock()
	if m.status != domain.StatusConnected {
		m.mu.Unlock()
		m.log.Debug("send dropped, not connected")
		return ErrNotConnected
	}
	env, err := m.codec.Seal(m.authKey, payload)
	conn := m.conn
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("seal message: %w", err)
	}

	if err := conn.WriteMessage(wire.EncodeData(env)); err != nil {
		return fmt.Errorf("write data frame: %w", err)
	}
	m.metrics.Frame(metrics.DirectionOut)
	return nil
}

// Close ends the current connection, if any, and waits until its key material
// has been wiped. A Connect still dialing is aborted and returns
// ErrConnectionClosed. Connect may be called again afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	conn, done := m.conn, m.done
	abort, dialing := m.abort, m.dialing
	m.mu.Unlock()

	if abort != nil {
		abort(errClosing)
		<-dialing
		return nil
	}
	if conn == nil {
		return nil
	}
	err := conn.Close()
	<-done
	return err
}

// Status reports the current state.
func (m *Manager) Status() domain.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// StatusChanged returns a channel that is closed on the next state transition.
func (m *Manager) StatusChanged() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changed
}

// WaitStatus blocks until the state equals s or ctx is done.
func (m *Manager) WaitStatus(ctx context.Context, s domain.Status) error {
	for {
		m.mu.Lock()
		cur, ch := m.status, m.changed
		m.mu.Unlock()
		if cur == s {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Log returns the ordered message log. It outlives individual connections.
func (m *Manager) Log() *Log { return m.records }

// SessionID is the server-assigned id of the current session, or "".
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// AuthKeyFingerprint is a short digest of the current AuthKey for out-of-band
// comparison, or "".
func (m *Manager) AuthKeyFingerprint() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fingerprint
}

func (m *Manager) readLoop(conn domain.Conn, kp *crypto.KeyPair, hs chan<- error, done chan<- struct{}) {
	defer close(done)
	defer m.teardown(conn, kp)

	handshaking := true
	for {
		b, err := conn.ReadMessage()
		if err != nil {
			if handshaking {
				hs <- fmt.Errorf("%w: %v", ErrConnectionClosed, err)
			}
			m.log.Debug("connection closed", zap.Error(err))
			return
		}

		if !handshaking {
			m.handleData(b)
			continue
		}

		ok, err := m.handleHandshake(kp, b)
		if err != nil {
			hs <- err
			return
		}
		if ok {
			handshaking = false
			hs <- nil
		}
	}
}

// handleHandshake processes one frame while waiting for server_hello. It
// reports ok once the session is connected; a non-nil error aborts it.
func (m *Manager) handleHandshake(kp *crypto.KeyPair, b []byte) (ok bool, err error) {
	f, err := wire.Decode(b)
	if err != nil {
		m.drop("malformed_frame", err)
		return false, nil
	}
	if f.Kind() != wire.KindServerHello {
		m.drop("unexpected_frame", fmt.Errorf("%s while handshaking", f.Kind()))
		return false, nil
	}
	hello, err := f.ServerHello()
	if err != nil {
		m.drop("malformed_frame", err)
		return false, nil
	}

	peer, err := crypto.ParsePublic(hello.PublicKey)
	if err != nil {
		m.log.Warn("handshake aborted", zap.Error(err))
		return false, err
	}
	authKey, err := kp.SharedSecret(peer)
	if err != nil {
		m.log.Warn("handshake aborted", zap.Error(err))
		return false, err
	}
	kp.Destroy()

	fp := crypto.Fingerprint(authKey)
	m.mu.Lock()
	m.authKey = authKey
	m.sessionID = hello.SessionID
	m.fingerprint = fp
	m.setStatusLocked(domain.StatusConnected)
	m.mu.Unlock()

	m.metrics.SessionOpened()
	m.log.Info("session established",
		zap.String("session_id", hello.SessionID),
		zap.String("auth_key_fp", fp),
		zap.String("codec", m.codec.Name()))
	return true, nil
}

func (m *Manager) handleData(b []byte) {
	f, err := wire.Decode(b)
	if err != nil {
		m.drop("malformed_frame", err)
		return
	}
	if f.Kind() != wire.KindData {
		m.drop("unexpected_frame", fmt.Errorf("%s while connected", f.Kind()))
		return
	}
	env, err := f.Envelope()
	if err != nil {
		m.drop("bad_hex", err)
		return
	}

	m.mu.Lock()
	plain, err := m.codec.Open(m.authKey, env)
	m.mu.Unlock()
	if err != nil {
		m.drop(mtproto.FailureReason(err), err)
		return
	}

	msg, err := message.Decode(plain)
	if err != nil {
		m.drop("undecodable_message", err)
		return
	}
	m.metrics.Frame(metrics.DirectionIn)
	r := m.records.Append(domain.Record{
		Type:    msg.MessageType(),
		Message: msg,
		Raw:     json.RawMessage(plain),
	})
	m.log.Debug("message received", zap.Uint64("seq", r.Seq), zap.String("type", r.Type))
}

func (m *Manager) drop(reason string, err error) {
	m.metrics.Dropped(reason)
	m.log.Warn("frame dropped", zap.String("reason", reason), zap.Error(err))
}

// teardown runs once per connection, on the reader goroutine, after the
// connection has failed or been closed.
func (m *Manager) teardown(conn domain.Conn, kp *crypto.KeyPair) {
	_ = conn.Close()
	kp.Destroy()

	m.mu.Lock()
	wasConnected := m.status == domain.StatusConnected
	memzero.Zero(m.authKey)
	m.authKey = nil
	m.sessionID = ""
	m.fingerprint = ""
	m.conn = nil
	if m.opts.ClearLogOnDisconnect {
		m.records.Reset()
	}
	m.setStatusLocked(domain.StatusDisconnected)
	m.mu.Unlock()

	if wasConnected {
		m.metrics.SessionClosed()
		m.log.Info("session closed")
	}
}

func (m *Manager) resetStatus() {
	m.mu.Lock()
	m.setStatusLocked(domain.StatusDisconnected)
	m.mu.Unlock()
}

func (m *Manager) setStatusLocked(s domain.Status) {
	if m.status == s {
		return
	}
	m.status = s
	close(m.changed)
	m.changed = make(chan struct{})
}

var _ domain.Transport = (*Manager)(nil)
