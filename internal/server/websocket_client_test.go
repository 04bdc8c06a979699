package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// wsPair starts a server that runs serve on its end of the connection and
// returns the client end.
func wsPair(t *testing.T, serve func(conn *websocket.Conn)) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Failed to upgrade: %v", err)
			return
		}
		defer conn.Close()
		serve(conn)
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// TestWebSocketClient_ReadMessage_SkipsEmptyFrames tests that blank frames
// are skipped without recursion
func TestWebSocketClient_ReadMessage_SkipsEmptyFrames(t *testing.T) {
	conn := wsPair(t, func(conn *websocket.Conn) {
		for i := 0; i < 1000; i++ {
			conn.WriteMessage(websocket.TextMessage, []byte("  \n"))
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"interact","npc":"foreman"}`))
		time.Sleep(100 * time.Millisecond)
	})

	client := NewWebSocketClient(conn, 0)
	msg, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if msg.Type != MsgInteract || msg.NPC != "foreman" {
		t.Errorf("Unexpected message: %+v", msg)
	}
}

func TestWebSocketClient_ReadMessage_Malformed(t *testing.T) {
	conn := wsPair(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"quests"}`))
		time.Sleep(100 * time.Millisecond)
	})

	client := NewWebSocketClient(conn, 0)
	if _, err := client.ReadMessage(); !errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("Expected ErrMalformedMessage, got %v", err)
	}

	msg, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("Connection should stay usable after a malformed frame: %v", err)
	}
	if msg.Type != MsgQuests {
		t.Errorf("Expected quests message, got %+v", msg)
	}
}

func TestWebSocketClient_ReadLimit(t *testing.T) {
	conn := wsPair(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"event","target":"`+strings.Repeat("x", 256)+`"}`))
		time.Sleep(100 * time.Millisecond)
	})

	client := NewWebSocketClient(conn, 64)
	if _, err := client.ReadMessage(); err == nil {
		t.Error("Oversized message should fail the read")
	}
}

func TestWebSocketClient_Send(t *testing.T) {
	received := make(chan string, 1)
	conn := wsPair(t, func(conn *websocket.Conn) {
		_, data, err := conn.ReadMessage()
		if err == nil {
			received <- string(data)
		}
	})

	client := NewWebSocketClient(conn, 0)
	if err := client.Send(newError(CodeStaleOption, "gone")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case got := <-received:
		want := `{"type":"error","code":"stale_option","message":"gone"}`
		if strings.TrimSpace(got) != want {
			t.Errorf("Sent %s, want %s", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Server never received the message")
	}
}
