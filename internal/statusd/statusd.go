// Package statusd provides the local status surface for presentation code.
//
// The server pushes sync status snapshots ({isOnline, isSyncing,
// pendingSyncCount, lastSyncTime, syncError}) to connected WebSocket
// clients and exposes plain HTTP endpoints for one-shot reads and for
// UI-driven manual sync.
package statusd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/kestrelhealth/praxis/internal/engine"
)

// Message wraps a status snapshot pushed to WebSocket clients.
type Message struct {
	Type      string        `json:"type"` // always "status"
	Timestamp time.Time     `json:"timestamp"`
	Status    engine.Status `json:"status"`
}

// Config holds server configuration.
type Config struct {
	// Port to listen on (0 = ephemeral). Binds loopback only; the status
	// surface is for the local UI, not the network.
	Port int

	// Logger for server activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:   8719,
		Logger: log.Default(),
	}
}

// client is one connected WebSocket consumer.
type client struct {
	id   string
	conn *websocket.Conn
}

// Server pushes status snapshots to presentation code.
type Server struct {
	engine *engine.Engine
	addr   string

	listener net.Listener
	server   *http.Server

	clients   map[*client]bool
	clientsMu sync.RWMutex

	statuses chan engine.Status

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// NewServer creates a status server over the given engine.
func NewServer(eng *engine.Engine, config *Config) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		engine:  eng,
		addr:    fmt.Sprintf("127.0.0.1:%d", config.Port),
		clients: make(map[*client]bool),
		ctx:     ctx,
		cancel:  cancel,
		logger:  config.Logger,
	}, nil
}

// Start begins the HTTP server and the status broadcast loop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/sync", s.handleSync)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.statuses = s.engine.Subscribe()

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Status server listening on %s", s.addr)
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Addr returns the bound address, useful when Port was 0 in tests.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.logger.Println("Stopping status server")

	s.cancel()
	s.engine.Unsubscribe(s.statuses)

	s.clientsMu.Lock()
	for c := range s.clients {
		_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(s.clients, c)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.wg.Wait()
	return nil
}

// broadcastLoop pushes each status snapshot to all connected clients.
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case status, ok := <-s.statuses:
			if !ok {
				return
			}
			s.push(status)
		}
	}
}

// push sends one snapshot to every client, dropping clients whose
// connection has gone away.
func (s *Server) push(status engine.Status) {
	data, err := json.Marshal(Message{
		Type:      "status",
		Timestamp: time.Now(),
		Status:    status,
	})
	if err != nil {
		s.logger.Printf("Failed to marshal status: %v", err)
		return
	}

	s.clientsMu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.RUnlock()

	for _, c := range clients {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, data)
		cancel()

		if err != nil {
			s.logger.Printf("Failed to send to client %s: %v", c.id, err)
			s.removeClient(c)
		}
	}
}

// handleWebSocket upgrades connections and sends the current snapshot
// immediately so a freshly mounted UI doesn't wait for the next change.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c := &client{id: uuid.NewString(), conn: conn}

	s.clientsMu.Lock()
	s.clients[c] = true
	count := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("Client %s connected (total: %d)", c.id, count)

	initial, _ := json.Marshal(Message{
		Type:      "status",
		Timestamp: time.Now(),
		Status:    s.engine.Status(),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = conn.Write(ctx, websocket.MessageText, initial)
	cancel()

	go s.readLoop(c)
}

// readLoop keeps the connection alive and detects disconnects.
func (s *Server) readLoop(c *client) {
	defer s.removeClient(c)

	for {
		_, _, err := c.conn.Read(s.ctx)
		if err != nil {
			return
		}
		// Client messages are not processed; /sync is the control channel.
	}
}

// removeClient safely removes a client connection.
func (s *Server) removeClient(c *client) {
	s.clientsMu.Lock()
	if _, exists := s.clients[c]; exists {
		delete(s.clients, c)
		count := len(s.clients)
		s.clientsMu.Unlock()

		_ = c.conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("Client %s disconnected (total: %d)", c.id, count)
	} else {
		s.clientsMu.Unlock()
	}
}

// handleStatus serves a one-shot JSON snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.engine.Status())
}

// handleSync lets the UI request an immediate drain pass. The engine's
// guard coalesces the request if a pass is already running.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.engine.TriggerSync()
	w.WriteHeader(http.StatusAccepted)
}

// handleHealth is a liveness check for the status server itself.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","time":"%s"}`, time.Now().Format(time.RFC3339))
}
