package ingest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lox/weatherpulse/internal/metrics"
)

const (
	DefaultPingInterval = 20 * time.Second
	DefaultPongWait     = 30 * time.Second
	writeWait           = 10 * time.Second
	maxMessageSize      = 64 << 10
)

// WebSocketServer accepts sensor connections and feeds every text message
// to the coordinator, replying with AckToken on success.
type WebSocketServer struct {
	coord        *Coordinator
	addr         string
	upgrader     websocket.Upgrader
	PingInterval time.Duration
	PongWait     time.Duration

	wg     sync.WaitGroup
	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool // set once shutdown starts; no new connections are tracked
}

func NewWebSocketServer(coord *Coordinator, addr string) *WebSocketServer {
	return &WebSocketServer{
		coord: coord,
		addr:  addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		PingInterval: DefaultPingInterval,
		PongWait:     DefaultPongWait,
		conns:        make(map[*websocket.Conn]struct{}),
	}
}

func (s *WebSocketServer) Handler() http.Handler {
	return http.HandlerFunc(s.handleConn)
}

func (s *WebSocketServer) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}
	// Hijacked connections are not closed by Shutdown.
	server.RegisterOnShutdown(s.closeAll)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	slog.Info("ingest: websocket server listening", "addr", s.addr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.closeAll()
	s.wg.Wait()
	return nil
}

func (s *WebSocketServer) handleConn(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ingest: websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	if !s.track(conn) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}
	defer s.untrack(conn)

	remote := conn.RemoteAddr().String()
	metrics.IngestConnections.Inc()
	defer metrics.IngestConnections.Dec()
	slog.Info("ingest: sensor connected", "remote", remote)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(s.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.PongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go s.ping(conn, done)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("ingest: sensor connection lost", "remote", remote, "err", err)
			} else {
				slog.Info("ingest: sensor disconnected", "remote", remote)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(s.PongWait))
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}

		ack := func() error {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			return conn.WriteMessage(websocket.TextMessage, []byte(AckToken))
		}
		if err := s.coord.Handle("websocket", data, ack); err != nil && !errors.Is(err, ErrMalformed) {
			slog.Warn("ingest: ack failed", "remote", remote, "err", err)
			return
		}
	}
}

// track registers conn for shutdown. It reports false once closeAll has run.
func (s *WebSocketServer) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	s.conns[conn] = struct{}{}
	return true
}

func (s *WebSocketServer) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	conn.Close()
	s.wg.Done()
}

func (s *WebSocketServer) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for conn := range s.conns {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
	}
}

// ping keeps idle connections alive. WriteControl may run concurrently with
// the reader's WriteMessage.
func (s *WebSocketServer) ping(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
