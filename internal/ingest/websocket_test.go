package ingest

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialTestServer(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketServer_AcksAndDrops(t *testing.T) {
	c, e := setupTestCoordinator(t)
	ws := NewWebSocketServer(c, "")
	srv := httptest.NewServer(ws.Handler())
	defer srv.Close()

	conn := dialTestServer(t, srv)

	send := func(msg string) {
		t.Helper()
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	send(`{"temperature": 20, "pressure": 1013, "light": 50}`)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, reply, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read ack: %v", err)
	}
	if string(reply) != AckToken {
		t.Fatalf("reply = %q, want %q", reply, AckToken)
	}

	// A malformed message gets no reply, so the next reply belongs to the
	// following valid reading.
	send(`{"temperature": 20, "light": 50}`)
	send(`{"temperature": 21, "pressure": 1013, "light": 50}`)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, reply, err = conn.ReadMessage(); err != nil || string(reply) != AckToken {
		t.Fatalf("reply = %q, err = %v", reply, err)
	}

	win := e.Window()
	if len(win) != 2 {
		t.Fatalf("window size = %d, want 2", len(win))
	}
	if win[1].Temperature != 21 {
		t.Errorf("second reading temperature = %v, want 21", win[1].Temperature)
	}
}

func TestWebSocketServer_ManySenders(t *testing.T) {
	c, e := setupTestCoordinator(t)
	srv := httptest.NewServer(NewWebSocketServer(c, "").Handler())
	defer srv.Close()

	conns := []*websocket.Conn{dialTestServer(t, srv), dialTestServer(t, srv), dialTestServer(t, srv)}
	for round := 0; round < 5; round++ {
		for _, conn := range conns {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"temperature": 1, "pressure": 2, "light": 3}`)); err != nil {
				t.Fatal(err)
			}
			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			if _, reply, err := conn.ReadMessage(); err != nil || string(reply) != AckToken {
				t.Fatalf("reply = %q, err = %v", reply, err)
			}
		}
	}
	if got := len(e.Window()); got != 15 {
		t.Errorf("window size = %d, want 15", got)
	}
}

func TestWebSocketServer_RejectsAfterShutdown(t *testing.T) {
	c, e := setupTestCoordinator(t)
	ws := NewWebSocketServer(c, "")
	srv := httptest.NewServer(ws.Handler())
	defer srv.Close()

	ws.closeAll()

	conn := dialTestServer(t, srv)
	conn.WriteMessage(websocket.TextMessage, []byte(`{"temperature": 20, "pressure": 1013, "light": 50}`))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("read err = %v, want going-away close", err)
	}

	if n := len(e.Window()); n != 0 {
		t.Errorf("window size = %d, want 0", n)
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if len(ws.conns) != 0 {
		t.Errorf("tracked conns = %d, want 0", len(ws.conns))
	}
}
