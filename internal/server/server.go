// Package server assembles the hub, the WebSocket upgrader and the HTTP
// router into a runnable signaling server.
package server

import (
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/gosignal/internal/signaling"
)

// Server bundles everything needed to serve signaling clients.
type Server struct {
	cfg      Config
	hub      *Hub
	upgrader websocket.Upgrader
}

// New validates cfg and builds a Server. The hub is not started; call
// StartHub before serving traffic.
func New(cfg Config) (*Server, error) {
	cfg = cfg.Sanitize()

	policy, err := signaling.ParseMatchPolicy(cfg.MatchPolicy)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	origins := newOriginPolicy(cfg.AllowedOrigins)
	return &Server{
		cfg: cfg,
		hub: NewHub(cfg, signaling.Options{Policy: policy, StrictRelay: cfg.StrictRelay}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     origins.checkOrigin,
		},
	}, nil
}

// Config returns the sanitized configuration the server runs with.
func (s *Server) Config() Config {
	return s.cfg
}

// Hub returns the server's hub for shutdown coordination and inspection.
func (s *Server) Hub() *Hub {
	return s.hub
}
