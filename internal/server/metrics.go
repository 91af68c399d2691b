package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Tyrowin/gosignal/internal/signaling"
)

const metricsNamespace = "gosignal"

const (
	dropInvalidFrame  = "invalid_frame"
	dropEmptyPayload  = "empty_payload"
	dropEmptyTarget   = "empty_target"
	dropSelfTarget    = "self_target"
	dropNotPartner    = "not_partner"
	dropUnknownTarget = "unknown_target"
	dropRateLimited   = "rate_limited"
	dropQueueFull     = "queue_full"

	causeSelfReport     = "self_report"
	causeTransportClose = "transport_close"
)

var (
	connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace, Name: "connected_clients", Help: "Currently connected WebSocket clients",
	})
	waitingPeers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace, Name: "waiting_peers", Help: "Peers waiting for a partner",
	})
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace, Name: "active_sessions", Help: "Paired sessions",
	})
	matchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace, Name: "matches_total", Help: "Pairs formed",
	})
	relayedMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace, Name: "relayed_messages_total", Help: "Negotiation messages relayed by kind",
	}, []string{"kind"})
	droppedMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace, Name: "dropped_messages_total", Help: "Frames dropped by reason",
	}, []string{"reason"})
	teardownsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace, Name: "teardowns_total", Help: "Sessions dissolved by cause",
	}, []string{"cause"})
)

func dropReason(err error) string {
	switch {
	case errors.Is(err, signaling.ErrEmptyPayload):
		return dropEmptyPayload
	case errors.Is(err, signaling.ErrEmptyTarget):
		return dropEmptyTarget
	case errors.Is(err, signaling.ErrSelfTarget):
		return dropSelfTarget
	case errors.Is(err, signaling.ErrNotPartner):
		return dropNotPartner
	}
	return dropInvalidFrame
}

func recordSwitchboardStats(stats signaling.Stats) {
	waitingPeers.Set(float64(stats.Waiting))
	activeSessions.Set(float64(stats.Sessions))
}

// StartMetricsServer serves Prometheus metrics on a dedicated listener.
func StartMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 3 * time.Second,
	}

	logrus.Infof("Starting prometheus metrics server on %s", addr)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("Prometheus metrics server failed: %v", err)
		}
	}()
	return server
}
