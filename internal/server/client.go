package server

import "time"

// Client abstracts the connection layer so sessions can be driven by a
// WebSocket or by an in-memory fake.
type Client interface {
	// ReadMessage blocks until a complete client message is received.
	// A message that is not valid JSON yields ErrMalformedMessage and the
	// connection stays usable.
	ReadMessage() (ClientMessage, error)

	// Send writes one JSON message. Safe to call from multiple goroutines.
	Send(msg any) error

	// SetReadDeadline bounds the next ReadMessage. The zero time clears it.
	SetReadDeadline(t time.Time) error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the client's address for logging.
	RemoteAddr() string
}
