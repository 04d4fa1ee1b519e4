package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"samor/internal/crypto"
	"samor/internal/domain"
	"samor/internal/protocol/mtproto"
	"samor/internal/protocol/wire"
	"samor/internal/services/message"
)

// pipeEnd is one side of an in-memory message pipe. Closing either side closes
// both, like net.Pipe.
type pipeEnd struct {
	in     <-chan []byte
	out    chan<- []byte
	closed chan struct{}
	once   *sync.Once
}

func newPipe() (*pipeEnd, *pipeEnd) {
	a, b := make(chan []byte, 32), make(chan []byte, 32)
	closed := make(chan struct{})
	once := new(sync.Once)
	return &pipeEnd{in: a, out: b, closed: closed, once: once},
		&pipeEnd{in: b, out: a, closed: closed, once: once}
}

func (p *pipeEnd) ReadMessage() ([]byte, error) {
	select {
	case b := <-p.in:
		return b, nil
	case <-p.closed:
		return nil, io.EOF
	}
}

func (p *pipeEnd) WriteMessage(b []byte) error {
	select {
	case <-p.closed:
		return io.ErrClosedPipe
	default:
	}
	select {
	case p.out <- append([]byte(nil), b...):
		return nil
	case <-p.closed:
		return io.ErrClosedPipe
	}
}

func (p *pipeEnd) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *pipeEnd) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

// pipeDialer hands out the client end of a fresh pipe per Dial and publishes
// the server end on accepted.
type pipeDialer struct {
	accepted chan *pipeEnd
	err      error
}

func newPipeDialer() *pipeDialer {
	return &pipeDialer{accepted: make(chan *pipeEnd, 4)}
}

func (d *pipeDialer) Dial(ctx context.Context, url string) (domain.Conn, error) {
	if d.err != nil {
		return nil, d.err
	}
	client, server := newPipe()
	d.accepted <- server
	return client, nil
}

func (d *pipeDialer) accept(t *testing.T) *fakeServer {
	t.Helper()
	select {
	case c := <-d.accepted:
		return &fakeServer{t: t, conn: c, codec: mtproto.Plain{}}
	case <-time.After(5 * time.Second):
		t.Fatal("no connection dialed")
		return nil
	}
}

// fakeServer plays the server half of the handshake over a pipe.
type fakeServer struct {
	t         *testing.T
	conn      *pipeEnd
	codec     mtproto.Codec
	authKey   []byte
	clientPub string
}

func (s *fakeServer) read() []byte {
	s.t.Helper()
	type result struct {
		b   []byte
		err error
	}
	ch := make(chan result, 1)
	go func() {
		b, err := s.conn.ReadMessage()
		ch <- result{b, err}
	}()
	select {
	case r := <-ch:
		require.NoError(s.t, r.err)
		return r.b
	case <-time.After(5 * time.Second):
		s.t.Fatal("timed out reading from client")
		return nil
	}
}

func (s *fakeServer) readClientHello() *big.Int {
	s.t.Helper()
	f, err := wire.Decode(s.read())
	require.NoError(s.t, err)
	hello, err := f.ClientHello()
	require.NoError(s.t, err)
	s.clientPub = hello.PublicKey
	pub, err := crypto.ParsePublic(hello.PublicKey)
	require.NoError(s.t, err)
	return pub
}

// handshake answers the client's hello and derives the AuthKey.
func (s *fakeServer) handshake(sessionID string) {
	s.t.Helper()
	clientPub := s.readClientHello()

	kp, err := crypto.GenerateKeyPair(crypto.Group14(), nil)
	require.NoError(s.t, err)
	defer kp.Destroy()

	s.authKey, err = kp.SharedSecret(clientPub)
	require.NoError(s.t, err)
	s.write(wire.EncodeServerHello(kp.PublicString(), sessionID))
}

func (s *fakeServer) write(b []byte) {
	s.t.Helper()
	require.NoError(s.t, s.conn.WriteMessage(b))
}

func (s *fakeServer) push(v any) {
	s.t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(s.t, err)
	s.pushRaw(raw)
}

func (s *fakeServer) pushRaw(raw []byte) {
	s.t.Helper()
	env, err := s.codec.Seal(s.authKey, raw)
	require.NoError(s.t, err)
	s.write(wire.EncodeData(env))
}

func (s *fakeServer) recv() domain.Request {
	s.t.Helper()
	f, err := wire.Decode(s.read())
	require.NoError(s.t, err)
	env, err := f.Envelope()
	require.NoError(s.t, err)
	plain, err := s.codec.Open(s.authKey, env)
	require.NoError(s.t, err)
	req, err := message.ParseRequest(plain)
	require.NoError(s.t, err)
	return req
}

var errDialRefused = errors.New("connection refused")

// gatedDialer holds every Dial until release is closed. With honorCtx a
// cancelled context ends the wait early, as a network dialer would.
type gatedDialer struct {
	*pipeDialer
	entered  chan struct{}
	enter    sync.Once
	release  chan struct{}
	honorCtx bool
}

func newGatedDialer(honorCtx bool) *gatedDialer {
	return &gatedDialer{
		pipeDialer: newPipeDialer(),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
		honorCtx:   honorCtx,
	}
}

func (d *gatedDialer) Dial(ctx context.Context, url string) (domain.Conn, error) {
	d.enter.Do(func() { close(d.entered) })
	if d.honorCtx {
		select {
		case <-d.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	} else {
		<-d.release
	}
	return d.pipeDialer.Dial(ctx, url)
}

type dialFunc func(ctx context.Context, url string) (domain.Conn, error)

func (f dialFunc) Dial(ctx context.Context, url string) (domain.Conn, error) { return f(ctx, url) }

// helloFirstConn returns a server_hello on its first read and runs onHello
// inside the first write, which is the client_hello.
type helloFirstConn struct {
	hello   []byte
	read    bool
	onHello func()
	wrote   sync.Once
	closed  chan struct{}
	close   sync.Once
}

func newHelloFirstConn(hello []byte, onHello func()) *helloFirstConn {
	return &helloFirstConn{hello: hello, onHello: onHello, closed: make(chan struct{})}
}

func (c *helloFirstConn) ReadMessage() ([]byte, error) {
	if !c.read {
		c.read = true
		return c.hello, nil
	}
	<-c.closed
	return nil, io.EOF
}

func (c *helloFirstConn) WriteMessage([]byte) error {
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}
	c.wrote.Do(c.onHello)
	return nil
}

func (c *helloFirstConn) Close() error {
	c.close.Do(func() { close(c.closed) })
	return nil
}
