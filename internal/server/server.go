// Package server constructs and starts the roomchat HTTP service with helpers
// that apply sensible production defaults.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomchat/internal/avatar"
	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/session"
)

// AvatarURLPrefix is the path stored avatars are served under.
const AvatarURLPrefix = "/static/avatars"

// Server owns the room engine and the HTTP surface in front of it. Every
// Server has its own Registry, so several can run side by side.
type Server struct {
	cfg        Config
	registry   *chat.Registry
	dispatcher *chat.Dispatcher
	handler    *chat.Handler
	sessions   *session.Manager
	avatars    *avatar.Store
	upgrader   websocket.Upgrader
	log        *slog.Logger
	wg         sync.WaitGroup

	clientsMu sync.Mutex
	clients   map[*Client]struct{}
}

// New builds a Server from cfg. cfg is sanitized first.
func New(cfg Config, log *slog.Logger) (*Server, error) {
	cfg = sanitizeConfig(cfg)

	store, err := avatar.NewStore(cfg.UploadDir, AvatarURLPrefix, cfg.VerifyAvatarContent, log)
	if err != nil {
		return nil, fmt.Errorf("avatar store: %w", err)
	}

	registry := chat.NewRegistry()
	dispatcher := chat.NewDispatcher(log)
	origins := newOriginPolicy(cfg.AllowedOrigins, log)

	return &Server{
		cfg:        cfg,
		registry:   registry,
		dispatcher: dispatcher,
		handler:    chat.NewHandler(registry, dispatcher, store, log),
		sessions:   session.NewManager(cfg.SessionSecret, cfg.SessionTTL),
		avatars:    store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
		log:     log,
		clients: make(map[*Client]struct{}),
	}, nil
}

// Registry returns the server's room registry.
func (s *Server) Registry() *chat.Registry {
	return s.registry
}

// Config returns the sanitized configuration in use.
func (s *Server) Config() Config {
	return s.cfg
}

// CreateServer creates and configures an HTTP server with the specified port and handler.
// It sets reasonable timeout values for production use.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartServer starts the HTTP server and begins listening for connections.
// It returns an error if the server fails to start.
func StartServer(server *http.Server, log *slog.Logger) error {
	log.Info("Server listening", "addr", server.Addr)
	return server.ListenAndServe()
}

// ShutdownServer gracefully shuts down the HTTP server without interrupting active connections.
func ShutdownServer(ctx context.Context, server *http.Server, log *slog.Logger) error {
	log.Info("Shutting down HTTP server...")

	if err := server.Shutdown(ctx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
		return err
	}

	log.Info("HTTP server shutdown completed")
	return nil
}

// Shutdown closes every live connection and waits for the client goroutines
// to finish, or for ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Closing realtime connections...")
	s.dispatcher.Close()
	for _, client := range s.liveClients() {
		client.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("Realtime shutdown completed")
		return nil
	case <-ctx.Done():
		s.log.Warn("Realtime shutdown timeout reached, some goroutines may still be running")
		return ctx.Err()
	}
}

func (s *Server) track(client *Client) {
	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	s.clientsMu.Unlock()
}

func (s *Server) untrack(client *Client) {
	s.clientsMu.Lock()
	delete(s.clients, client)
	s.clientsMu.Unlock()
}

// liveClients returns every connected client, including those without a session.
func (s *Server) liveClients() []*Client {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	clients := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	return clients
}
