package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/emaruz/gridpulse/internal/beat"
	"github.com/emaruz/gridpulse/internal/sequence"
)

const broadcastInterval = 33 * time.Millisecond // ~30 Hz toward consumers

// Status is the one-way readout pushed to consumers each frame. Consumers
// only ever read; the engine never depends on them.
type Status struct {
	FPS           float64            `json:"fps"`
	Bands         map[string]float64 `json:"bands"`
	Energy        float64            `json:"energy"`
	AverageEnergy float64            `json:"averageEnergy"`
	Beat          beat.State         `json:"beat"`
	Cell          sequence.Cell      `json:"cell"`
	Compositor    string             `json:"compositor"`
}

// Server exposes the engine readout over HTTP and websocket.
type Server struct {
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	srv     *http.Server
	last    Status
	clients map[*client]bool
	lastPub time.Time
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewServer creates a readout server.
func NewServer(logger *log.Logger) *Server {
	return &Server{
		logger:  logger,
		clients: make(map[*client]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Start serves on the given port in a background goroutine.
func (s *Server) Start(port int) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWebSocket)

	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{Addr: addr, Handler: mux}
	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) && s.logger != nil {
			s.logger.Printf("web server stopped: %v", err)
		}
	}()
	if s.logger != nil {
		s.logger.Printf("readout server listening on %s", addr)
	}
}

// Stop shuts the listener down and waits briefly for in-flight handlers.
// Safe to call more than once, or without a prior Start.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// Publish stores the latest status and fans it out to websocket consumers,
// throttled so slow consumers never stall the render loop. The bands map is
// copied here: the engine reuses its map across frames, and handlers read
// the stored status after the lock is released.
func (s *Server) Publish(st Status) {
	if st.Bands != nil {
		bands := make(map[string]float64, len(st.Bands))
		for name, level := range st.Bands {
			bands[name] = level
		}
		st.Bands = bands
	}
	s.mu.Lock()
	s.last = st
	now := time.Now()
	if now.Sub(s.lastPub) < broadcastInterval || len(s.clients) == 0 {
		s.mu.Unlock()
		return
	}
	s.lastPub = now
	payload, err := json.Marshal(st)
	if err != nil {
		s.mu.Unlock()
		return
	}
	for c := range s.clients {
		select {
		case c.send <- payload:
		default: // drop the frame for a congested consumer
		}
	}
	s.mu.Unlock()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	st := s.last
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil && s.logger != nil {
		s.logger.Printf("status encode: %v", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Printf("websocket upgrade: %v", err)
		}
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 16)}

	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()

	go s.writePump(c)
	go s.readPump(c)
}

func (s *Server) writePump(c *client) {
	defer c.conn.Close()
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// readPump exists only to notice disconnects; inbound messages are ignored.
func (s *Server) readPump(c *client) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		close(c.send)
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
