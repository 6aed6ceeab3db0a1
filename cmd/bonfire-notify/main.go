// Command bonfire-notify runs the real-time notification streaming gateway:
// websocket and SSE endpoints in front of the NATS event bus.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bonfire-networks/bonfire-notify/auth"
	"github.com/bonfire-networks/bonfire-notify/config"
	"github.com/bonfire-networks/bonfire-notify/directory"
	"github.com/bonfire-networks/bonfire-notify/metric"
	"github.com/bonfire-networks/bonfire-notify/natsclient"
	"github.com/bonfire-networks/bonfire-notify/streaming"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("Gateway exited with error", "error", err)
		os.Exit(1)
	}
}

// natsBus adapts the NATS client to the streaming bus interface.
type natsBus struct {
	client *natsclient.Client
}

func (b natsBus) Subscribe(ctx context.Context, topic string, handler func(context.Context, []byte)) (streaming.BusSubscription, error) {
	return b.client.Subscribe(ctx, topic, handler)
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	logger := setupLogging(opts.logLevel, opts.logFormat)
	slog.SetDefault(logger)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	applyOverrides(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Ops endpoint: prometheus metrics and liveness
	var registry *metric.MetricsRegistry
	if cfg.Metrics.Enabled {
		registry = metric.NewMetricsRegistry()
		metricServer := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
		go func() {
			if err := metricServer.Start(); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
		defer func() { _ = metricServer.Stop() }()
		logger.Info("Metrics available", "address", metricServer.Address())
	}

	client, err := natsclient.NewClient(cfg.NATS.URL,
		natsclient.WithName(cfg.NATS.Name),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(cfg.NATS.ReconnectWait),
		natsclient.WithTimeout(cfg.NATS.Timeout),
		natsclient.WithReconnectHandler(func() {
			if registry != nil {
				registry.CoreMetrics().NATSReconnects.Inc()
			}
		}),
	)
	if err != nil {
		return err
	}
	if registry != nil {
		client.OnHealthChange(func(healthy bool) {
			value := 0.0
			if healthy {
				value = 1.0
			}
			registry.CoreMetrics().NATSConnected.Set(value)
		})
	}

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = client.Close(closeCtx)
	}()

	if registry != nil {
		go watchRTT(ctx, client, registry)
	}

	authority, err := auth.NewNATSAuthority(client, cfg.Auth.Subject, cfg.Auth.Timeout, logger)
	if err != nil {
		return err
	}

	var dir directory.Directory
	switch cfg.Directory.Mode {
	case "static":
		dir = directory.NewStaticDirectory(cfg.Directory.Prefix)
	default:
		dir, err = directory.NewNATSDirectory(client, cfg.Directory.Subject, cfg.Directory.Timeout, logger)
		if err != nil {
			return err
		}
	}

	resolver := streaming.NewResolver(dir, logger)

	streamMetrics, err := streaming.NewMetrics(registry)
	if err != nil {
		return err
	}

	serverCfg := streaming.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		Path:         cfg.Server.Path,
		WriteTimeout: cfg.Server.WriteTimeout,
		PongTimeout:  cfg.Server.PongTimeout,
		Connection: streaming.ConnectionConfig{
			HeartbeatInterval: cfg.Server.HeartbeatInterval,
			MailboxCapacity:   cfg.Server.MailboxCapacity,
			QueueCapacity:     cfg.Server.QueueCapacity,
		},
	}

	server, err := streaming.NewServer(serverCfg, authority, resolver, natsBus{client: client}, logger, streamMetrics)
	if err != nil {
		return err
	}
	if err := server.Initialize(); err != nil {
		return err
	}

	if registry != nil {
		registry.CoreMetrics().ComponentStatus.WithLabelValues(server.Meta().Name).Set(1)
	}

	logger.Info("Starting notification gateway",
		"nats", cfg.NATS.URL,
		"listen", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
	)

	runErr := server.Start(ctx)

	logger.Info("Shutting down")
	if err := server.Stop(15 * time.Second); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	if registry != nil {
		registry.CoreMetrics().ComponentStatus.WithLabelValues(server.Meta().Name).Set(0)
	}

	return runErr
}

// applyOverrides layers non-empty flag values over the loaded config.
func applyOverrides(cfg *config.Config, opts *options) {
	if opts.natsURL != "" {
		cfg.NATS.URL = opts.natsURL
	}
	if opts.host != "" {
		cfg.Server.Host = opts.host
	}
	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}
	if opts.metricsPort != 0 {
		cfg.Metrics.Port = opts.metricsPort
	}
	if opts.directoryMode != "" {
		cfg.Directory.Mode = opts.directoryMode
	}
}

// watchRTT samples the bus round-trip time into the metrics registry.
func watchRTT(ctx context.Context, client *natsclient.Client, registry *metric.MetricsRegistry) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if rtt, err := client.RTT(); err == nil {
				registry.CoreMetrics().NATSRTT.Set(float64(rtt.Milliseconds()))
			}
		}
	}
}
