// Subscribing sample application.
//
// Connects to the broker over TLS, subscribes to a topic, and drives the
// protocol with a sleep-then-yield loop until interrupted. Received
// numeric payloads are optionally recorded to InfluxDB.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ovidiuparvu/iotcore/internal/client"
	"github.com/ovidiuparvu/iotcore/internal/infrastructure/config"
	"github.com/ovidiuparvu/iotcore/internal/infrastructure/logging"
	"github.com/ovidiuparvu/iotcore/internal/infrastructure/metrics"
	"github.com/ovidiuparvu/iotcore/internal/recorder"
)

// Version information - set at build time via ldflags
var (
	version = "dev"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

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
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("subscribe", flag.ContinueOnError)
	configPath := flags.String("config", getConfigPath(), "path to the YAML configuration file")
	host := flags.String("host", "", "broker host (overrides config)")
	port := flags.Int("port", 0, "broker port (overrides config)")
	clientID := flags.String("client-id", "", "client identifier (overrides config)")
	topic := flags.String("topic", "", "subscription topic filter (overrides config)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	log := logging.Default()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyFlagOverrides(cfg, *host, *port, *clientID, *topic)

	log = logging.New(cfg.Logging, version)
	log.Info("starting subscriber",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"topic", cfg.Subscribe.Topic,
	)

	if cfg.Metrics.Enabled {
		go func() {
			if serveErr := metrics.Serve(cfg.Metrics.Listen); serveErr != nil {
				log.Error("metrics server failed", "error", serveErr)
			}
		}()
		log.Info("metrics endpoint started", "listen", cfg.Metrics.Listen)
	}

	rec := newRecorder(cfg, log)
	if rec != nil {
		defer func() {
			if closeErr := rec.Close(); closeErr != nil {
				log.Error("error closing recorder", "error", closeErr)
			}
		}()
	}

	c, err := newClient(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("disconnecting")
		if unsubErr := c.Unsubscribe(cfg.Subscribe.Topic); unsubErr != nil {
			log.Warn("error unsubscribing", "error", unsubErr)
		}
		if closeErr := c.Disconnect(); closeErr != nil {
			log.Error("error disconnecting", "error", closeErr)
		}
	}()

	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	log.Info("connected", "client_id", c.ClientID())

	handler := makeHandler(c, rec, log)
	if err := c.Subscribe(cfg.Subscribe.Topic, 0, handler); err != nil {
		return fmt.Errorf("subscribing: %w", err)
	}
	log.Info("subscribed", "topic", cfg.Subscribe.Topic)

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			return nil
		case <-time.After(cfg.Subscribe.PollInterval):
		}

		if err := c.Yield(ctx, cfg.Subscribe.YieldTimeout); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("processing: %w", err)
		}
	}
}

// makeHandler builds the message handler: log every message and record
// numeric payloads when the recorder is active.
func makeHandler(c *client.Client, rec *recorder.Recorder, log *logging.Logger) func(topic string, payload []byte) error {
	return func(topic string, payload []byte) error {
		log.Info("message received", "topic", topic, "payload", string(payload))

		if rec == nil || !rec.IsConnected() {
			return nil
		}
		value, err := strconv.ParseFloat(string(payload), 64)
		if err != nil {
			log.Warn("payload is not numeric, skipping recording",
				"topic", topic, "payload", string(payload))
			return nil
		}
		rec.WriteReading(c.ClientID(), topic, value)
		return nil
	}
}

// newRecorder connects the InfluxDB recorder when enabled. Returns nil
// when recording is disabled or the connection fails; the subscriber
// keeps running without it.
func newRecorder(cfg *config.Config, log *logging.Logger) *recorder.Recorder {
	if !cfg.InfluxDB.Enabled {
		return nil
	}

	rec, err := recorder.Connect(cfg.InfluxDB)
	if err != nil {
		log.Error("recorder unavailable, readings will not be stored", "error", err)
		return nil
	}
	rec.SetOnError(func(err error) {
		log.Error("recorder write failed", "error", err)
	})
	log.Info("recorder connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	return rec
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
func applyFlagOverrides(cfg *config.Config, host string, port int, clientID, topic string) {
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
		cfg.Subscribe.Topic = topic
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
