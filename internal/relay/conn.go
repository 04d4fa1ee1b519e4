package relay

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"samor/internal/domain"
)

const (
	// ReadLimit caps the size of one inbound frame.
	ReadLimit = 1 << 20
	writeWait = 10 * time.Second
)

// CloseProtocolError is the close code sent when a peer opens with the wrong
// frame.
const CloseProtocolError = 4000

// Conn adapts a websocket connection to domain.Conn. Writes are serialized;
// one goroutine may read concurrently with them.
type Conn struct {
	ws        *websocket.Conn
	wmu       sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newConn(ws *websocket.Conn) *Conn {
	ws.SetReadLimit(ReadLimit)
	return &Conn{ws: ws}
}

// ReadMessage returns the next text or binary message.
func (c *Conn) ReadMessage() ([]byte, error) {
	_, b, err := c.ws.ReadMessage()
	return b, err
}

// WriteMessage sends b as one text message.
func (c *Conn) WriteMessage(b []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

// Close sends a normal close frame and closes the socket.
func (c *Conn) Close() error {
	return c.CloseWithCode(websocket.CloseNormalClosure, "")
}

// CloseWithCode sends a close frame with code and reason, then closes the
// socket. Only the first call has any effect.
func (c *Conn) CloseWithCode(code int, reason string) error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

func (c *Conn) setReadDeadline(t time.Time) error { return c.ws.SetReadDeadline(t) }

// Dialer opens websocket connections for the client session manager.
type Dialer struct {
	WS     *websocket.Dialer
	Header http.Header
}

// NewDialer returns a Dialer using websocket.DefaultDialer.
func NewDialer() *Dialer {
	return &Dialer{WS: websocket.DefaultDialer}
}

// Dial connects to a ws:// or wss:// URL.
func (d *Dialer) Dial(ctx context.Context, url string) (domain.Conn, error) {
	wd := d.WS
	if wd == nil {
		wd = websocket.DefaultDialer
	}
	ws, resp, err := wd.DialContext(ctx, url, d.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial: %w (status %s)", err, resp.Status)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return newConn(ws), nil
}

// Compile-time assertions.
var (
	_ domain.Conn   = (*Conn)(nil)
	_ domain.Dialer = (*Dialer)(nil)
)
