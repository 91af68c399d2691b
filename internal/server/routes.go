// Package server wires HTTP handlers into a router for the signaling
// application.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures and returns the router with all application routes:
// health checks, the WebSocket endpoint, stats, the test page, and metrics when
// they are not served on a dedicated listener.
func (s *Server) SetupRoutes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/ws", s.WebSocketHandler)
	router.HandleFunc("/", HealthHandler).Methods(http.MethodGet)
	router.HandleFunc("/healthz", HealthHandler).Methods(http.MethodGet)
	router.HandleFunc("/stats", s.StatsHandler).Methods(http.MethodGet)
	router.HandleFunc("/test", TestPageHandler).Methods(http.MethodGet)
	if s.cfg.MetricsEnabled && s.cfg.MetricsAddr == "" {
		router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
	return router
}
