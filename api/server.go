// Package api is the local diagnostics surface: a health probe, a JSON
// snapshot of the counters, and a websocket tap of the live position
// stream. It is an operator convenience on the lab network; the control
// path stays on the bus.
package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"

	"github.com/attoscope/eccstream/stream"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server exposes the HTTP routes.
type Server struct {
	snapshot func() stream.Snapshot
	hub      *Hub
	log      hclog.Logger

	mu   sync.Mutex
	http *http.Server
}

func NewServer(snapshot func() stream.Snapshot, hub *Hub, log hclog.Logger) *Server {
	return &Server{snapshot: snapshot, hub: hub, log: log}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.getHealth)
	r.Get("/status", s.getStatus)
	r.Get("/live", s.getLive)

	return r
}

// Serve blocks on the listener until Shutdown; main runs it on its own
// goroutine. A shutdown-initiated return is not an error.
func (s *Server) Serve(addr string) error {
	s.mu.Lock()
	srv := &http.Server{Addr: addr, Handler: s.Router()}
	s.http = srv
	s.mu.Unlock()

	s.log.Info("http surface listening", "addr", addr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests,
// bounded by ctx. Safe to call when Serve never ran.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	render.PlainText(w, r, "ok")
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.snapshot())
}

// getLive upgrades to a websocket and mirrors every published position
// batch to the client until it goes away.
func (s *Server) getLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := s.hub.add(conn)
	defer s.hub.remove(conn)

	// Reads only to observe the close handshake.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.hub.remove(conn)
				return
			}
		}
	}()

	for msg := range ch {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
