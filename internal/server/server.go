// Package server hosts player sessions over a WebSocket JSON protocol and
// drives each player's quest log on a per-session strand.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/jeremymiller99/lumberjacksim-sub000/internal/antispam"
	"github.com/jeremymiller99/lumberjacksim-sub000/internal/config"
	"github.com/jeremymiller99/lumberjacksim-sub000/internal/database"
	"github.com/jeremymiller99/lumberjacksim-sub000/internal/items"
	"github.com/jeremymiller99/lumberjacksim-sub000/internal/logger"
	"github.com/jeremymiller99/lumberjacksim-sub000/internal/quest"
)

var (
	errBadHello         = errors.New("bad hello")
	errAlreadyConnected = errors.New("player already connected")
	errShuttingDown     = errors.New("server shutting down")
)

type Server struct {
	cfg              *config.ServerConfig
	registry         *quest.Registry
	catalog          *items.Catalog
	store            QuestLogStore
	connLimiter      *ConnLimiter
	handshakeLimiter *HandshakeLimiter

	mu       sync.RWMutex
	sessions map[string]*Session

	shutdown     chan struct{}
	shutdownOnce sync.Once
	StartTime    time.Time
}

// NewServer creates a server. The registry must already be initialized.
func NewServer(cfg *config.ServerConfig, registry *quest.Registry, catalog *items.Catalog, store QuestLogStore) *Server {
	return &Server{
		cfg:              cfg,
		registry:         registry,
		catalog:          catalog,
		store:            store,
		connLimiter:      NewConnLimiter(cfg.Connections),
		handshakeLimiter: NewHandshakeLimiter(cfg.RateLimit),
		sessions:         make(map[string]*Session),
		shutdown:         make(chan struct{}),
		StartTime:        time.Now(),
	}
}

// Handler returns the HTTP handler serving /ws and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocketUpgrade)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Run serves until ctx is cancelled, then shuts down and flushes every
// session's pending save.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Listen.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("WebSocket server listening", "address", s.cfg.Listen.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("websocket server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.sweepLoop(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Listen.ShutdownTimeout)
		defer cancel()

		// Hijacked WebSocket connections are not tracked by http.Server.
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warning("HTTP shutdown incomplete", "error", err)
		}
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown stops accepting players and closes every session concurrently,
// waiting for their final saves until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		close(s.shutdown)

		s.mu.RLock()
		sessions := make([]*Session, 0, len(s.sessions))
		for _, sess := range s.sessions {
			sessions = append(sessions, sess)
		}
		s.mu.RUnlock()

		var g errgroup.Group
		for _, sess := range sessions {
			g.Go(func() error {
				sess.Close()
				return nil
			})
		}

		waited := make(chan struct{})
		go func() {
			g.Wait()
			close(waited)
		}()

		select {
		case <-waited:
			logger.Info("Server shutdown complete, all quest logs saved", "sessions", len(sessions))
		case <-ctx.Done():
			err = fmt.Errorf("waiting for sessions to save: %w", ctx.Err())
		}
	})
	return err
}

func (s *Server) shuttingDown() bool {
	select {
	case <-s.shutdown:
		return true
	default:
		return false
	}
}

// sweepLoop periodically drops stale quest interaction caches and expired
// handshake lockouts.
func (s *Server) sweepLoop(ctx context.Context) {
	interval := s.cfg.Quests.SweepInterval
	if interval <= 0 {
		logger.Info("Quest sweep disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Server) sweep() {
	s.mu.RLock()
	for _, sess := range s.sessions {
		sess.post(func() {
			if sess.log != nil {
				sess.log.Sweep()
			}
		})
	}
	count := len(s.sessions)
	s.mu.RUnlock()

	removed := s.handshakeLimiter.Cleanup()
	logger.Debug("Sweep completed", "sessions", count, "lockouts_removed", removed)
}

// SessionCount returns the number of connected players.
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// handleWebSocketUpgrade upgrades an HTTP connection to WebSocket.
func (s *Server) handleWebSocketUpgrade(w http.ResponseWriter, r *http.Request) {
	clientIP := getRealIP(r)

	if s.shuttingDown() {
		http.Error(w, "Server is shutting down.", http.StatusServiceUnavailable)
		return
	}

	if locked, remaining := s.handshakeLimiter.IsLocked(clientIP); locked {
		logger.Warning("WebSocket connection rejected - locked out",
			"client_ip", clientIP,
			"remaining", remaining.Round(time.Second))
		http.Error(w, "Too many failed attempts. Please try again later.", http.StatusTooManyRequests)
		return
	}

	release, err := s.connLimiter.Acquire(clientIP)
	if err != nil {
		logger.Warning("WebSocket connection rejected - limit exceeded",
			"remote_addr", r.RemoteAddr,
			"client_ip", clientIP,
			"reason", err)
		http.Error(w, "Too many connections. Please try again later.", http.StatusTooManyRequests)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			allowed := s.cfg.WebSocket.IsOriginAllowed(origin, r.Host)
			if !allowed {
				logger.Warning("WebSocket connection rejected - origin not allowed",
					"origin", origin,
					"host", r.Host,
					"remote_addr", r.RemoteAddr)
			}
			return allowed
		},
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug("WebSocket upgrade failed", "error", err)
		release()
		return
	}

	go func() {
		defer release()
		client := NewWebSocketClient(wsConn, s.cfg.WebSocket.MaxMessageSize)
		defer client.Close()
		s.handleClient(client, clientIP)
	}()
}

// handleClient runs one connection from hello to disconnect.
func (s *Server) handleClient(client Client, ip string) {
	logger.Debug("Client connected", "remote_addr", client.RemoteAddr())

	playerID, err := s.handshake(client, ip)
	if err != nil {
		logger.Info("Handshake failed", "remote_addr", client.RemoteAddr(), "error", err)
		return
	}

	sess, err := s.openSession(playerID, client)
	if err != nil {
		logger.Info("Session rejected", "player", playerID, "error", err)
		switch {
		case errors.Is(err, errAlreadyConnected):
			client.Send(newError(CodeAlreadyConnected, "That player is already connected."))
		default:
			client.Send(newError(CodeUnavailable, "Unable to load your quest log. Please try again later."))
		}
		return
	}
	logger.Info("Player connected", "player", playerID, "remote_addr", client.RemoteAddr())

	defer func() {
		sess.Close()
		s.removeSession(sess)
		logger.Info("Player disconnected", "player", playerID)
	}()

	if ka, ok := client.(interface {
		Keepalive(time.Duration, <-chan struct{})
	}); ok {
		ka.Keepalive(s.cfg.WebSocket.PingInterval, sess.done)
	}

	flood := antispam.NewTracker(antispam.Config{
		MaxMessages: s.cfg.Session.MaxMessages,
		Window:      s.cfg.Session.MessageWindow,
	})
	s.readLoop(sess, flood)
}

// handshake waits for a hello and validates the player ID.
func (s *Server) handshake(client Client, ip string) (string, error) {
	if timeout := s.cfg.Session.HandshakeTimeout; timeout > 0 {
		client.SetReadDeadline(time.Now().Add(timeout))
	}

	msg, err := client.ReadMessage()
	if err != nil && !errors.Is(err, ErrMalformedMessage) {
		return "", err
	}

	if err != nil || msg.Type != MsgHello || !ValidPlayerID(msg.Player) {
		client.Send(newError(CodeBadHello, "Expected a hello with a valid player id."))
		if locked, d := s.handshakeLimiter.RecordFailure(ip); locked {
			logger.Warning("Client locked out after failed handshakes", "client_ip", ip, "duration", d)
		}
		return "", errBadHello
	}

	s.handshakeLimiter.RecordSuccess(ip)
	client.SetReadDeadline(time.Time{})
	return msg.Player, nil
}

// openSession reserves the player ID, loads the stored quest log and starts
// the session strand.
func (s *Server) openSession(playerID string, client Client) (*Session, error) {
	sess := newSession(playerID, client, s.catalog, s.cfg.Session.InventorySlots, s.store, s.cfg.Quests.SaveTimeout)

	s.mu.Lock()
	if s.shuttingDown() {
		s.mu.Unlock()
		sess.saver.close()
		return nil, errShuttingDown
	}
	if _, exists := s.sessions[playerID]; exists {
		s.mu.Unlock()
		sess.saver.close()
		return nil, errAlreadyConnected
	}
	s.sessions[playerID] = sess
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Quests.SaveTimeout)
	defer cancel()

	data, found, err := s.store.LoadQuestLog(ctx, playerID)
	switch {
	case errors.Is(err, database.ErrChecksumMismatch):
		logger.Warning("Stored quest log failed verification, starting fresh", "player", playerID)
	case err != nil:
		s.removeSession(sess)
		sess.saver.close()
		return nil, fmt.Errorf("loading quest log: %w", err)
	case found:
		sess.persisted, sess.restored = data, true
	}

	sess.start(s.registry, quest.Options{
		ResyncWindow: s.cfg.Quests.ResyncWindow,
		SaveDelay:    s.cfg.Quests.SaveDelay,
	})
	return sess, nil
}

func (s *Server) removeSession(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[sess.id] == sess {
		delete(s.sessions, sess.id)
	}
}

// readLoop feeds client messages to the session strand until the
// connection drops or the session closes.
func (s *Server) readLoop(sess *Session, flood *antispam.Tracker) {
	for {
		msg, err := sess.client.ReadMessage()
		if errors.Is(err, ErrMalformedMessage) {
			if !sess.post(func() { sess.send(newError(CodeMalformed, "Malformed message.")) }) {
				return
			}
			continue
		}
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("Connection closed unexpectedly", "player", sess.id, "error", err)
			}
			return
		}

		if res := flood.Check(); !res.Allowed {
			if flood.Blocked() == 1 {
				logger.Warning("Client is flooding", "player", sess.id, "remote_addr", sess.client.RemoteAddr())
			}
			if !sess.post(func() { sess.send(newError(CodeRateLimited, "You're sending messages too quickly.")) }) {
				return
			}
			continue
		}

		if !sess.post(func() { sess.handle(msg) }) {
			return
		}
	}
}

type healthResponse struct {
	Status      string    `json:"status"`
	Sessions    int       `json:"sessions"`
	Connections ConnStats `json:"connections"`
	Quests      int       `json:"quests"`
	Uptime      string    `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if s.shuttingDown() {
		status = "shutting_down"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthResponse{
		Status:      status,
		Sessions:    s.SessionCount(),
		Connections: s.connLimiter.Stats(),
		Quests:      s.registry.Count(),
		Uptime:      time.Since(s.StartTime).Round(time.Second).String(),
	})
}
