// Package testclient drives a running quest server over its WebSocket
// protocol for integration scenarios.
package testclient

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Message is one decoded server message.
type Message map[string]any

// Type returns the message type
func (m Message) Type() string {
	return m.String("type")
}

// String returns a string field, or "" if absent
func (m Message) String(key string) string {
	s, _ := m[key].(string)
	return s
}

// Int returns a numeric field, or 0 if absent
func (m Message) Int(key string) int {
	f, _ := m[key].(float64)
	return int(f)
}

// Strings returns a string array field
func (m Message) Strings(key string) []string {
	raw, _ := m[key].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Option is a dialogue option offered by the server.
type Option struct {
	ID   int
	Text string
}

// Options returns the options of a dialogue message
func (m Message) Options() []Option {
	raw, _ := m["options"].([]any)
	opts := make([]Option, 0, len(raw))
	for _, v := range raw {
		o, _ := v.(map[string]any)
		id, _ := o["id"].(float64)
		text, _ := o["text"].(string)
		opts = append(opts, Option{ID: int(id), Text: text})
	}
	return opts
}

// TestClient represents a test client connection to the quest server
type TestClient struct {
	Name string

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu       sync.Mutex
	messages []Message
	cursor   int // Messages before cursor were consumed by WaitFor
	closed   bool
	done     chan struct{}
}

// Dial opens a connection without sending a hello.
func Dial(url string) (*TestClient, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	client := &TestClient{
		conn: conn,
		done: make(chan struct{}),
	}
	go client.readMessages()
	return client, nil
}

// NewTestClient connects and greets the server as the named player.
func NewTestClient(name string, url string) (*TestClient, error) {
	client, err := Dial(url)
	if err != nil {
		return nil, err
	}
	client.Name = name

	if err := client.Send(map[string]any{"type": "hello", "player": name}); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to send hello: %w", err)
	}

	msg, ok := client.WaitFor(func(m Message) bool {
		return m.Type() == "welcome" || m.Type() == "error"
	}, 2*time.Second)
	if !ok {
		client.Close()
		return nil, fmt.Errorf("no welcome, messages: %v", client.GetMessages())
	}
	if msg.Type() == "error" {
		client.Close()
		return nil, fmt.Errorf("hello rejected: %s", msg.String("code"))
	}
	return client, nil
}

// readMessages continuously reads messages from the server
func (c *TestClient) readMessages() {
	defer func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		c.mu.Lock()
		c.messages = append(c.messages, msg)
		c.mu.Unlock()
	}
}

// Send writes one JSON message
func (c *TestClient) Send(msg any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

// Interact opens dialogue with an NPC type
func (c *TestClient) Interact(npc string) error {
	return c.Send(map[string]any{"type": "interact", "npc": npc})
}

// Select picks a dialogue option
func (c *TestClient) Select(npc string, id int) error {
	return c.Send(map[string]any{"type": "select", "npc": npc, "id": id})
}

// Event reports an in-world event
func (c *TestClient) Event(kind, target string, quantity int) error {
	return c.Send(map[string]any{"type": "event", "kind": kind, "target": target, "quantity": quantity})
}

// GetMessages returns all messages received so far
func (c *TestClient) GetMessages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]Message, len(c.messages))
	copy(result, c.messages)
	return result
}

// ClearMessages marks every message received so far as consumed
func (c *TestClient) ClearMessages() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursor = len(c.messages)
}

// WaitFor waits for an unconsumed message accepted by match. The match and
// everything before it are consumed.
func (c *TestClient) WaitFor(match func(Message) bool, timeout time.Duration) (Message, bool) {
	deadline := time.Now().Add(timeout)
	for {
		c.mu.Lock()
		for i := c.cursor; i < len(c.messages); i++ {
			if match(c.messages[i]) {
				c.cursor = i + 1
				msg := c.messages[i]
				c.mu.Unlock()
				return msg, true
			}
		}
		closed := c.closed
		c.mu.Unlock()

		if closed || time.Now().After(deadline) {
			return nil, false
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// WaitForType waits for the next message of the given type
func (c *TestClient) WaitForType(typ string, timeout time.Duration) (Message, bool) {
	return c.WaitFor(func(m Message) bool { return m.Type() == typ }, timeout)
}

// IsClosed reports whether the server closed the connection
func (c *TestClient) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close closes the connection
func (c *TestClient) Close() error {
	select {
	case <-c.done:
		return nil
	default:
		close(c.done)
	}
	return c.conn.Close()
}
