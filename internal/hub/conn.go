package hub

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// handshakeTimeout bounds the WebSocket dial, including the TLS and HTTP
// upgrade round trips.
const handshakeTimeout = 10 * time.Second

// Conn is the minimal socket surface the Client depends on. The production
// implementation wraps gorilla/websocket; tests substitute an in-memory fake.
type Conn interface {
	// ReadMessage blocks until the next complete message or a read error.
	ReadMessage() ([]byte, error)

	// WriteMessage sends one complete text message.
	WriteMessage(data []byte) error

	// Close tears the socket down. Any blocked ReadMessage returns an error.
	Close() error
}

// Dialer opens a Conn to the given WebSocket URL.
type Dialer func(url string, maxMessageSize int) (Conn, error)

// DefaultDialer connects using gorilla/websocket.
func DefaultDialer(url string, maxMessageSize int) (Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	ws, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}

	if maxMessageSize > 0 {
		ws.SetReadLimit(int64(maxMessageSize))
	}

	return &gorillaConn{ws: ws}, nil
}

// gorillaConn adapts *websocket.Conn to the Conn interface.
type gorillaConn struct {
	ws *websocket.Conn
}

func (c *gorillaConn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

func (c *gorillaConn) WriteMessage(data []byte) error {
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *gorillaConn) Close() error {
	return c.ws.Close()
}
