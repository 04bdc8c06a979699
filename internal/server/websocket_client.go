package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrMalformedMessage is returned by ReadMessage for frames that are not a
// JSON client message.
var ErrMalformedMessage = errors.New("malformed client message")

const writeTimeout = 10 * time.Second

// WebSocketClient wraps a WebSocket connection carrying JSON messages.
type WebSocketClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex // gorilla allows one concurrent writer
}

// NewWebSocketClient creates a new WebSocketClient from a WebSocket connection.
func NewWebSocketClient(conn *websocket.Conn, maxMessageSize int64) *WebSocketClient {
	if maxMessageSize > 0 {
		conn.SetReadLimit(maxMessageSize)
	}
	return &WebSocketClient{conn: conn}
}

// ReadMessage reads the next client message. Empty frames are skipped.
func (c *WebSocketClient) ReadMessage() (ClientMessage, error) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return ClientMessage{}, err
		}
		if len(bytes.TrimSpace(data)) == 0 {
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return ClientMessage{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		return msg, nil
	}
}

// Send writes msg as a JSON text frame.
func (c *WebSocketClient) Send(msg any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(msg)
}

// SetReadDeadline sets the read deadline on the underlying connection.
func (c *WebSocketClient) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// Keepalive pings the client every interval until stop is closed. A client
// that misses two pongs in a row times out on its next read.
func (c *WebSocketClient) Keepalive(interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		return
	}
	c.conn.SetReadDeadline(time.Now().Add(2 * interval))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * interval))
	})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.writeMu.Lock()
				err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
				c.writeMu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()
}

// Close closes the WebSocket connection.
func (c *WebSocketClient) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the remote address as a string.
func (c *WebSocketClient) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
