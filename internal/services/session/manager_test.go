package session_test

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"samor/internal/crypto"
	"samor/internal/domain"
	"samor/internal/metrics"
	"samor/internal/protocol/mtproto"
	"samor/internal/protocol/wire"
	"samor/internal/services/message"
	"samor/internal/services/session"
)

const testURL = "ws://test/ws/connect"

func newManager(t *testing.T, d domain.Dialer, opts session.Options) *session.Manager {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = zaptest.NewLogger(t)
	}
	m := session.New(d, testURL, opts)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func connect(t *testing.T, m *session.Manager, d *pipeDialer, sessionID string) *fakeServer {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- m.Connect(context.Background()) }()

	srv := d.accept(t)
	srv.handshake(sessionID)
	require.NoError(t, <-errc)
	return srv
}

func waitLen(t *testing.T, m *session.Manager, n int) []domain.Record {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for m.Log().Len() < n {
		select {
		case <-m.Log().Changed():
		case <-ctx.Done():
			t.Fatalf("log has %d records, want %d", m.Log().Len(), n)
		}
	}
	return m.Log().Records()
}

func waitStatus(t *testing.T, m *session.Manager, s domain.Status) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.WaitStatus(ctx, s))
}

func TestConnect_Handshake(t *testing.T) {
	d := newPipeDialer()
	m := newManager(t, d, session.Options{})
	assert.Equal(t, domain.StatusDisconnected, m.Status())

	changed := m.StatusChanged()
	srv := connect(t, m, d, "sess-1")

	select {
	case <-changed:
	default:
		t.Fatal("status change not signalled")
	}
	assert.Equal(t, domain.StatusConnected, m.Status())
	assert.Equal(t, "sess-1", m.SessionID())
	assert.Equal(t, crypto.Fingerprint(srv.authKey), m.AuthKeyFingerprint())
}

func TestConnect_AlreadyConnected(t *testing.T) {
	d := newPipeDialer()
	m := newManager(t, d, session.Options{})
	connect(t, m, d, "s")

	assert.ErrorIs(t, m.Connect(context.Background()), session.ErrAlreadyConnected)
}

func TestConnect_DialError(t *testing.T) {
	d := newPipeDialer()
	d.err = errDialRefused
	m := newManager(t, d, session.Options{})

	err := m.Connect(context.Background())
	assert.ErrorIs(t, err, errDialRefused)
	assert.Equal(t, domain.StatusDisconnected, m.Status())
}

func TestConnect_HandshakeTimeout(t *testing.T) {
	d := newPipeDialer()
	m := newManager(t, d, session.Options{HandshakeTimeout: 50 * time.Millisecond})

	errc := make(chan error, 1)
	go func() { errc <- m.Connect(context.Background()) }()
	srv := d.accept(t)
	srv.readClientHello()

	assert.ErrorIs(t, <-errc, session.ErrHandshakeTimeout)
	assert.Equal(t, domain.StatusDisconnected, m.Status())
	assert.True(t, srv.conn.isClosed())
	assert.Empty(t, m.AuthKeyFingerprint())
}

func TestConnect_ContextCanceled(t *testing.T) {
	d := newPipeDialer()
	m := newManager(t, d, session.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- m.Connect(ctx) }()
	d.accept(t).readClientHello()
	cancel()

	assert.ErrorIs(t, <-errc, context.Canceled)
	assert.Equal(t, domain.StatusDisconnected, m.Status())
}

func TestClose_AbortsDial(t *testing.T) {
	d := newGatedDialer(true)
	m := newManager(t, d, session.Options{})

	errc := make(chan error, 1)
	go func() { errc <- m.Connect(context.Background()) }()
	<-d.entered
	assert.Equal(t, domain.StatusHandshaking, m.Status())

	require.NoError(t, m.Close())
	assert.Equal(t, domain.StatusDisconnected, m.Status())
	assert.ErrorIs(t, <-errc, session.ErrConnectionClosed)
}

func TestClose_DialCompletingAfterClose(t *testing.T) {
	d := newGatedDialer(false)
	m := newManager(t, d, session.Options{})

	errc := make(chan error, 1)
	go func() { errc <- m.Connect(context.Background()) }()
	<-d.entered

	closed := make(chan error, 1)
	go func() { closed <- m.Close() }()
	select {
	case <-closed:
		t.Fatal("Close returned while the dial was still pending")
	case <-time.After(20 * time.Millisecond):
	}
	close(d.release)

	require.NoError(t, <-closed)
	assert.ErrorIs(t, <-errc, session.ErrConnectionClosed)
	assert.Equal(t, domain.StatusDisconnected, m.Status())
	assert.Empty(t, m.SessionID())
	assert.True(t, d.accept(t).conn.isClosed())

	// The Manager is reusable.
	connect(t, m, d.pipeDialer, "again")
	assert.Equal(t, "again", m.SessionID())
}

func TestConnect_HandshakeAtDeadlineWins(t *testing.T) {
	g := crypto.Group14()
	serverPub := new(big.Int).Exp(g.G(), big.NewInt(5), g.P())
	hello := wire.EncodeServerHello(serverPub.String(), "edge")

	for i := 0; i < 20; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		var m *session.Manager
		conn := newHelloFirstConn(hello, func() {
			// Connected and reported before Connect starts waiting, then
			// the context ends too.
			waitStatus(t, m, domain.StatusConnected)
			time.Sleep(10 * time.Millisecond)
			cancel()
		})
		m = newManager(t, dialFunc(func(context.Context, string) (domain.Conn, error) {
			return conn, nil
		}), session.Options{})

		require.NoError(t, m.Connect(ctx), "iteration %d", i)
		assert.Equal(t, domain.StatusConnected, m.Status())
		assert.Equal(t, "edge", m.SessionID())
		require.NoError(t, m.Close())
	}
}

func TestConnect_InvalidPeerValue(t *testing.T) {
	for _, pub := range []string{"0", "1", "not-a-number"} {
		t.Run(pub, func(t *testing.T) {
			d := newPipeDialer()
			m := newManager(t, d, session.Options{})

			errc := make(chan error, 1)
			go func() { errc <- m.Connect(context.Background()) }()
			srv := d.accept(t)
			srv.readClientHello()
			srv.write(wire.EncodeServerHello(pub, "s"))

			assert.ErrorIs(t, <-errc, crypto.ErrInvalidPeerValue)
			assert.Equal(t, domain.StatusDisconnected, m.Status())
			assert.True(t, srv.conn.isClosed())
		})
	}
}

func TestConnect_PeerValuePMinusOne(t *testing.T) {
	d := newPipeDialer()
	m := newManager(t, d, session.Options{})

	errc := make(chan error, 1)
	go func() { errc <- m.Connect(context.Background()) }()
	srv := d.accept(t)
	srv.readClientHello()

	pm1 := new(big.Int).Sub(crypto.Group14().P(), big.NewInt(1))
	srv.write(wire.EncodeServerHello(pm1.String(), "s"))

	assert.ErrorIs(t, <-errc, crypto.ErrInvalidPeerValue)
}

func TestConnect_IgnoresFramesBeforeServerHello(t *testing.T) {
	d := newPipeDialer()
	m := newManager(t, d, session.Options{})

	errc := make(chan error, 1)
	go func() { errc <- m.Connect(context.Background()) }()
	srv := d.accept(t)

	// Queued ahead of the hello reply; all of them must be ignored.
	srv.write(wire.EncodeData([]byte("0123456789abcdef0123456789abcdef")))
	srv.write([]byte(`{"type":"ping"}`))
	srv.write([]byte(`garbage`))
	srv.handshake("s")

	require.NoError(t, <-errc)
	assert.Equal(t, domain.StatusConnected, m.Status())
	assert.Zero(t, m.Log().Len())
}

func TestSend_NotConnectedIsNoop(t *testing.T) {
	d := newPipeDialer()
	m := newManager(t, d, session.Options{})

	req, err := message.NewRequest("ping", nil)
	require.NoError(t, err)
	assert.ErrorIs(t, m.Send(req), session.ErrNotConnected)

	srv := connect(t, m, d, "s")
	require.NoError(t, srv.conn.Close())
	waitStatus(t, m, domain.StatusDisconnected)

	assert.ErrorIs(t, m.Send(req), session.ErrNotConnected)
}

func TestSend_EncryptsRequest(t *testing.T) {
	d := newPipeDialer()
	m := newManager(t, d, session.Options{})
	srv := connect(t, m, d, "s")

	req, err := message.NewRequest("echo", map[string]string{"text": "hello"})
	require.NoError(t, err)
	require.NoError(t, m.Send(req))

	got := srv.recv()
	assert.Equal(t, "echo", got.Method)
	assert.JSONEq(t, `{"text":"hello"}`, string(got.Args))
}

func TestSend_Unmarshalable(t *testing.T) {
	d := newPipeDialer()
	m := newManager(t, d, session.Options{})
	connect(t, m, d, "s")

	assert.Error(t, m.Send(map[string]any{"f": func() {}}))
}

// statusRequest reads the Manager while being marshalled.
type statusRequest struct{ m *session.Manager }

func (r statusRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"method": "status",
		"args":   map[string]string{"status": r.m.Status().String()},
	})
}

func TestSend_MarshalerMayUseManager(t *testing.T) {
	d := newPipeDialer()
	m := newManager(t, d, session.Options{})
	srv := connect(t, m, d, "s")

	errc := make(chan error, 1)
	go func() { errc <- m.Send(statusRequest{m}) }()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Send blocked")
	}

	got := srv.recv()
	assert.Equal(t, "status", got.Method)
	assert.JSONEq(t, `{"status":"connected"}`, string(got.Args))
}

func TestReceive_OrderedAndDropsBadFrames(t *testing.T) {
	reg := prometheus.NewRegistry()
	d := newPipeDialer()
	m := newManager(t, d, session.Options{Metrics: metrics.New(reg)})
	srv := connect(t, m, d, "s")

	wrongKey := make([]byte, crypto.AuthKeySize)
	badEnv, err := mtproto.Encrypt(wrongKey, []byte(`{"type":"success"}`))
	require.NoError(t, err)

	srv.push(map[string]any{"type": "response", "data": "1"})
	srv.write([]byte(`{"data":"zz"}`))
	srv.push(map[string]any{"type": "response", "data": "2"})
	srv.write(wire.EncodeData([]byte{1, 2, 3}))
	srv.push(map[string]any{"type": "response", "data": "3"})
	srv.write(wire.EncodeData(badEnv))
	srv.pushRaw([]byte(`{"type":"messages.read","peer_id":"x"}`))
	srv.pushRaw([]byte(`[1,2,3]`))
	srv.write(wire.EncodeServerHello("5", "again"))
	srv.push(map[string]any{"type": "call.offer", "sender_id": 4, "data": map[string]string{"sdp": "v=0"}})

	recs := waitLen(t, m, 4)
	require.Len(t, recs, 4)
	for i, want := range []string{"1", "2", "3"} {
		assert.Equal(t, uint64(i+1), recs[i].Seq)
		resp, ok := recs[i].Message.(domain.Response)
		require.True(t, ok)
		assert.Equal(t, want, resp.Text())
	}
	call, ok := recs[3].Message.(domain.CallSignal)
	require.True(t, ok)
	assert.Equal(t, domain.TypeCallOffer, call.Kind)
	assert.Equal(t, domain.TypeCallOffer, recs[3].Type)

	assert.Equal(t, domain.StatusConnected, m.Status())
	assert.Equal(t, "s", m.SessionID())

	n, err := testutil.GatherAndCount(reg, "samor_frames_dropped_total")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 3)
}

func TestReconnect_FreshKeys(t *testing.T) {
	d := newPipeDialer()
	m := newManager(t, d, session.Options{})

	first := connect(t, m, d, "one")
	fp1 := m.AuthKeyFingerprint()
	first.push(map[string]any{"type": "success"})
	waitLen(t, m, 1)

	require.NoError(t, first.conn.Close())
	waitStatus(t, m, domain.StatusDisconnected)
	assert.Empty(t, m.SessionID())
	assert.Empty(t, m.AuthKeyFingerprint())

	second := connect(t, m, d, "two")
	assert.NotEqual(t, first.clientPub, second.clientPub)
	assert.NotEqual(t, fp1, m.AuthKeyFingerprint())
	assert.Equal(t, "two", m.SessionID())

	// The log survives reconnects and keeps counting.
	second.push(map[string]any{"type": "success"})
	recs := waitLen(t, m, 2)
	assert.Equal(t, uint64(2), recs[1].Seq)

	// Frames sealed under the old AuthKey no longer decrypt.
	stale := &fakeServer{t: t, conn: second.conn, codec: mtproto.Plain{}, authKey: first.authKey}
	stale.push(map[string]any{"type": "error", "message": "stale"})
	second.push(map[string]any{"type": "success", "message": "fresh"})
	recs = waitLen(t, m, 3)
	require.Len(t, recs, 3)
	assert.Equal(t, domain.Success{Message: "fresh"}, recs[2].Message)
}

func TestDisconnect_ClearLog(t *testing.T) {
	d := newPipeDialer()
	m := newManager(t, d, session.Options{ClearLogOnDisconnect: true})

	srv := connect(t, m, d, "s")
	srv.push(map[string]any{"type": "success"})
	waitLen(t, m, 1)

	require.NoError(t, m.Close())
	assert.Equal(t, domain.StatusDisconnected, m.Status())
	assert.Zero(t, m.Log().Len())
	assert.True(t, srv.conn.isClosed())
}

func TestClose_Idle(t *testing.T) {
	m := newManager(t, newPipeDialer(), session.Options{})
	assert.NoError(t, m.Close())
}

func TestAuthenticatedCodec(t *testing.T) {
	d := newPipeDialer()
	m := newManager(t, d, session.Options{Codec: mtproto.Authenticated{}})

	srv := connect(t, m, d, "s")
	srv.codec = mtproto.Authenticated{}

	require.NoError(t, m.Send(map[string]string{"method": "ping"}))
	assert.Equal(t, "ping", srv.recv().Method)

	// A plain envelope is rejected by the MAC check.
	srv.codec = mtproto.Plain{}
	srv.push(map[string]any{"type": "error", "message": "unauthenticated"})
	srv.codec = mtproto.Authenticated{}
	srv.push(map[string]any{"type": "success"})

	recs := waitLen(t, m, 1)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.TypeSuccess, recs[0].Type)
}
