package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// FrameReader is the read half, used only by the inbound pump
type FrameReader interface {
	// ReadMessage returns the next data frame: websocket.TextMessage or websocket.BinaryMessage
	ReadMessage() (messageType int, data []byte, err error)
}

// FrameWriter is the write half, used only by the outbound pump
type FrameWriter interface {
	WriteText(data []byte) error
	WritePing() error
}

// Conn is a client connection split into its two halves.
// Close may be called from any goroutine and must unblock a pending read.
type Conn interface {
	FrameReader
	FrameWriter
	Close() error
}

// Settings are the keepalive and limit parameters of a client connection
type Settings struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
}

// DefaultSettings mirrors the usual gorilla chat values
func DefaultSettings() Settings {
	pongWait := 60 * time.Second
	return Settings{
		WriteWait:      10 * time.Second,
		PongWait:       pongWait,
		PingPeriod:     (pongWait * 9) / 10,
		MaxMessageSize: 64 * 1024,
	}
}

type gorillaConn struct {
	conn      *websocket.Conn
	settings  Settings
	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps an upgraded gorilla connection, arming the read limit,
// the read deadline and the pong handler that extends it.
func NewConn(conn *websocket.Conn, settings Settings) Conn {
	c := &gorillaConn{conn: conn, settings: settings}

	if settings.MaxMessageSize > 0 {
		conn.SetReadLimit(settings.MaxMessageSize)
	}
	if settings.PongWait > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(settings.PongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(settings.PongWait))
		})
	}
	return c
}

func (c *gorillaConn) ReadMessage() (int, []byte, error) {
	return c.conn.ReadMessage()
}

func (c *gorillaConn) WriteText(data []byte) error {
	c.setWriteDeadline()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *gorillaConn) WritePing() error {
	c.setWriteDeadline()
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// Close sends a best-effort close frame and tears down the socket
func (c *gorillaConn) Close() error {
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		if c.settings.WriteWait > 0 {
			deadline = time.Now().Add(c.settings.WriteWait)
		}
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *gorillaConn) setWriteDeadline() {
	if c.settings.WriteWait > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.settings.WriteWait))
	}
}
