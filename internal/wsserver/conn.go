// Package wsserver wraps gorilla/websocket connections for the pane stream:
// serialized writes, heartbeat with pong tracking, and the service's close
// codes.
package wsserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeDeadline bounds a single WebSocket write. Localhost clients that
	// stall longer than this are treated as dead.
	writeDeadline = 5 * time.Second

	// pingInterval is the heartbeat period. A peer that fails to answer one
	// ping before the next is terminated, bounding dead-connection detection
	// at two intervals.
	pingInterval = 30 * time.Second
)

// Close codes in the 4000 range are permanent server rejections; clients
// must not auto-reconnect on them.
const (
	ClosePaneNotFound = 4001
	CloseSpawnFailed  = 4002
)

// Upgrader is shared by every stream upgrade. The server binds to localhost;
// origin checks add nothing there.
var Upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 32 * 1024,
}

// Conn is one stream connection. gorilla/websocket does not allow concurrent
// writes; writeMu serializes every writer (PTY pump, control frames, ping
// loop).
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	// pongPending is set when a ping goes out and cleared by the pong
	// handler. Still set at the next ping tick means the peer is gone.
	pongPending atomic.Bool

	closeOnce sync.Once
}

// NewConn wraps an upgraded connection: installs the pong handler and
// disables Nagle so single-keystroke echoes are not batched.
func NewConn(ws *websocket.Conn) *Conn {
	c := &Conn{ws: ws}
	ws.SetPongHandler(func(string) error {
		c.pongPending.Store(false)
		return nil
	})
	if tcp, ok := ws.UnderlyingConn().(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(true); err != nil {
			slog.Debug("[ws] SetNoDelay failed", "error", err)
		}
	}
	return c
}

// WriteBinary sends PTY bytes verbatim as one binary frame.
func (c *Conn) WriteBinary(data []byte) error {
	return c.write(websocket.BinaryMessage, data)
}

// WriteControl sends a JSON control message as one text frame.
func (c *Conn) WriteControl(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, payload)
}

func (c *Conn) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, data)
}

// ReadMessage blocks for the next inbound frame.
func (c *Conn) ReadMessage() (int, []byte, error) {
	return c.ws.ReadMessage()
}

// PingLoop sends heartbeats until ctx is cancelled or the peer stops
// answering, then terminates the connection. Run as its own goroutine per
// stream.
func (c *Conn) PingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.pongPending.Load() {
				slog.Info("[ws] heartbeat missed, terminating peer")
				c.Terminate()
				return
			}
			c.pongPending.Store(true)
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline))
			c.writeMu.Unlock()
			if err != nil {
				c.Terminate()
				return
			}
		}
	}
}

// CloseWithCode sends a close frame with the given code and reason, then
// closes the socket. Used for both normal (1000) and permanent (4xxx)
// closes.
func (c *Conn) CloseWithCode(code int, reason string) {
	c.closeOnce.Do(func() {
		payload := websocket.FormatCloseMessage(code, reason)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage, payload, time.Now().Add(writeDeadline))
		c.writeMu.Unlock()
		_ = c.ws.Close()
	})
}

// Terminate drops the connection without a close handshake.
func (c *Conn) Terminate() {
	c.closeOnce.Do(func() { _ = c.ws.Close() })
}
