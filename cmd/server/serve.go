package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/Tyrowin/gosignal/internal/server"
)

var serveCommand = &cli.Command{
	Name:   "serve",
	Usage:  "Accept signaling connections (default command)",
	Flags:  serveFlags(),
	Action: runServe,
}

// serveFlags override values read from the environment by
// server.NewConfigFromEnv; only flags that are set take effect.
func serveFlags() []cli.Flag {
	defaults := server.DefaultConfig()
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "port",
			Usage: "Listen address, env SERVER_PORT",
			Value: defaults.Port,
		},
		&cli.StringSliceFlag{
			Name:  "allowed-origins",
			Usage: "Origins allowed to open a WebSocket, `*` allows any, env ALLOWED_ORIGINS",
		},
		&cli.Int64Flag{
			Name:  "max-message-size",
			Usage: "Maximum inbound frame size in bytes, env MAX_MESSAGE_SIZE",
			Value: defaults.MaxMessageSize,
		},
		&cli.IntFlag{
			Name:  "rate-limit-burst",
			Usage: "Frames a connection may send per refill interval, env RATE_LIMIT_BURST",
			Value: defaults.RateLimit.Burst,
		},
		&cli.DurationFlag{
			Name:  "rate-limit-refill-interval",
			Usage: "Time to refill the whole burst, env RATE_LIMIT_REFILL_INTERVAL (seconds)",
			Value: defaults.RateLimit.RefillInterval,
		},
		&cli.StringFlag{
			Name:  "match-policy",
			Usage: "Which waiter an arriving peer is paired with: lifo or fifo, env MATCH_POLICY",
			Value: defaults.MatchPolicy,
		},
		&cli.BoolFlag{
			Name:  "strict-relay",
			Usage: "Only relay negotiation messages to the sender's partner, env STRICT_RELAY",
		},
		&cli.BoolFlag{
			Name:  "metrics",
			Usage: "Expose prometheus metrics, env METRICS",
		},
		&cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "Serve metrics on a dedicated listener instead of the main router, env METRICS_ADDR",
		},
		&cli.DurationFlag{
			Name:  "shutdown-timeout",
			Usage: "Grace period for open connections on shutdown, env SHUTDOWN_TIMEOUT (seconds)",
			Value: defaults.ShutdownTimeout,
		},
	}
}

func buildConfig(c *cli.Context) server.Config {
	cfg := server.NewConfigFromEnv()

	if c.IsSet("port") {
		cfg.Port = c.String("port")
	}
	if c.IsSet("allowed-origins") {
		cfg.AllowedOrigins = c.StringSlice("allowed-origins")
	}
	if c.IsSet("max-message-size") {
		cfg.MaxMessageSize = c.Int64("max-message-size")
	}
	if c.IsSet("rate-limit-burst") {
		cfg.RateLimit.Burst = c.Int("rate-limit-burst")
	}
	if c.IsSet("rate-limit-refill-interval") {
		cfg.RateLimit.RefillInterval = c.Duration("rate-limit-refill-interval")
	}
	if c.IsSet("match-policy") {
		cfg.MatchPolicy = c.String("match-policy")
	}
	if c.IsSet("strict-relay") {
		cfg.StrictRelay = c.Bool("strict-relay")
	}
	if c.IsSet("metrics") {
		cfg.MetricsEnabled = c.Bool("metrics")
	}
	if c.IsSet("metrics-addr") {
		cfg.MetricsAddr = c.String("metrics-addr")
	}
	if c.IsSet("shutdown-timeout") {
		cfg.ShutdownTimeout = c.Duration("shutdown-timeout")
	}
	return cfg
}

func runServe(c *cli.Context) error {
	srv, err := server.New(buildConfig(c))
	if err != nil {
		return err
	}
	cfg := srv.Config()
	logrus.WithFields(logrus.Fields{
		"port":         cfg.Port,
		"match_policy": cfg.MatchPolicy,
		"strict_relay": cfg.StrictRelay,
		"metrics":      cfg.MetricsEnabled,
	}).Info("Starting gosignal")

	srv.StartHub()

	var metricsServer *http.Server
	if cfg.MetricsEnabled && cfg.MetricsAddr != "" {
		metricsServer = server.StartMetricsServer(cfg.MetricsAddr)
	}

	httpServer := server.CreateServer(cfg.Port, srv.SetupRoutes())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.StartServer(httpServer)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case sig := <-stop:
		logrus.Infof("Received %s, shutting down", sig)
	case err = <-serveErr:
		if err != nil {
			logrus.Errorf("HTTP server failed: %v", err)
		}
	}

	if shutdownErr := srv.Shutdown(httpServer, metricsServer); shutdownErr != nil {
		logrus.Errorf("Shutdown finished with errors: %v", shutdownErr)
		if err == nil {
			err = shutdownErr
		}
	}
	return err
}
