// Publishing sample application.
//
// Connects to the broker over TLS and publishes a fixed number of random
// integer readings at a configured interval, driving the protocol with
// Yield between publishes. Demonstrates keep-alive handling and
// reconnection from the publishing side.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ovidiuparvu/iotcore/internal/client"
	"github.com/ovidiuparvu/iotcore/internal/infrastructure/config"
	"github.com/ovidiuparvu/iotcore/internal/infrastructure/logging"
	"github.com/ovidiuparvu/iotcore/internal/infrastructure/metrics"
)

// Version information - set at build time via ldflags
var (
	version = "dev"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// randomReadingLimit bounds the published values to 0..99.
const randomReadingLimit = 100

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command-line arguments without the program name
//
// Returns:
//   - error: nil on clean completion, or error describing failure
func run(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("publish", flag.ContinueOnError)
	configPath := flags.String("config", getConfigPath(), "path to the YAML configuration file")
	host := flags.String("host", "", "broker host (overrides config)")
	port := flags.Int("port", 0, "broker port (overrides config)")
	clientID := flags.String("client-id", "", "client identifier (overrides config)")
	topic := flags.String("topic", "", "publish topic (overrides config)")
	count := flags.Int("count", 0, "number of messages to publish (overrides config)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	log := logging.Default()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyFlagOverrides(cfg, *host, *port, *clientID, *topic, *count)

	log = logging.New(cfg.Logging, version)
	log.Info("starting publisher",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"topic", cfg.Publish.Topic,
		"count", cfg.Publish.Count,
	)

	if cfg.Metrics.Enabled {
		go func() {
			if serveErr := metrics.Serve(cfg.Metrics.Listen); serveErr != nil {
				log.Error("metrics server failed", "error", serveErr)
			}
		}()
		log.Info("metrics endpoint started", "listen", cfg.Metrics.Listen)
	}

	c, err := newClient(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("disconnecting")
		if closeErr := c.Disconnect(); closeErr != nil {
			log.Error("error disconnecting", "error", closeErr)
		}
	}()

	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	log.Info("connected", "client_id", c.ClientID())

	published := 0
	for published < cfg.Publish.Count {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received", "published", published)
			return nil
		case <-time.After(cfg.Publish.Interval):
		}

		if c.IsConnected() {
			payload := strconv.Itoa(rand.Intn(randomReadingLimit))
			if pubErr := c.Publish(cfg.Publish.Topic, []byte(payload), 0, false); pubErr != nil {
				if errors.Is(pubErr, client.ErrNotConnected) || errors.Is(pubErr, client.ErrTransport) {
					log.Warn("publish skipped, connection down", "error", pubErr)
				} else {
					return fmt.Errorf("publishing: %w", pubErr)
				}
			} else {
				published++
				log.Info("published", "topic", cfg.Publish.Topic, "payload", payload, "sent", published)
			}
		}

		if yieldErr := c.Yield(ctx, cfg.Publish.YieldTimeout); yieldErr != nil {
			if errors.Is(yieldErr, context.Canceled) {
				return nil
			}
			return fmt.Errorf("processing: %w", yieldErr)
		}
	}

	log.Info("all messages published", "count", published)
	return nil
}

// newClient builds the client from config and wires logging and metrics.
func newClient(cfg *config.Config, log *logging.Logger) (*client.Client, error) {
	c, err := client.New(client.Options{
		Host:                  cfg.Broker.Host,
		Port:                  cfg.Broker.Port,
		ClientID:              cfg.Broker.ClientID,
		RootCAFile:            cfg.TLS.RootCA,
		CertFile:              cfg.TLS.Cert,
		KeyFile:               cfg.TLS.Key,
		ServerName:            cfg.TLS.ServerName,
		Insecure:              cfg.TLS.Insecure,
		HandshakeTimeout:      cfg.TLS.HandshakeTimeout,
		KeepAlive:             cfg.Session.KeepAlive,
		CleanSession:          cfg.Session.CleanSession,
		CommandTimeout:        cfg.Session.CommandTimeout,
		AutoReconnect:         cfg.Session.AutoReconnect,
		MaxReconnectAttempts:  cfg.Session.MaxReconnectAttempts,
		ReconnectInitialDelay: cfg.Session.ReconnectInitialDelay,
		ReconnectMaxDelay:     cfg.Session.ReconnectMaxDelay,
	})
	if err != nil {
		return nil, fmt.Errorf("building client: %w", err)
	}

	c.SetLogger(log)
	c.SetMetrics(metrics.Recorder{})
	c.SetOnConnect(func() {
		log.Info("session established")
	})
	c.SetOnDisconnect(func(err error) {
		log.Warn("connection lost", "error", err)
		if !c.IsAutoReconnectEnabled() {
			log.Info("attempting manual reconnect")
			if recErr := c.AttemptReconnect(context.Background()); recErr != nil {
				log.Error("manual reconnect failed", "error", recErr)
			}
		}
	})
	return c, nil
}

// applyFlagOverrides lays command-line values over the loaded config.
func applyFlagOverrides(cfg *config.Config, host string, port int, clientID, topic string, count int) {
	if host != "" {
		cfg.Broker.Host = host
	}
	if port != 0 {
		cfg.Broker.Port = port
	}
	if clientID != "" {
		cfg.Broker.ClientID = clientID
	}
	if topic != "" {
		cfg.Publish.Topic = topic
	}
	if count != 0 {
		cfg.Publish.Count = count
	}
}

// getConfigPath returns the configuration file path.
// Uses IOTCORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("IOTCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
