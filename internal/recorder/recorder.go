package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/ovidiuparvu/iotcore/internal/infrastructure/config"
)

// Default timeouts and batching for InfluxDB operations.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	defaultBatchSize       = 100
	defaultFlushIntervalMs = 1000
)

// Recorder wraps the InfluxDB v2 client for storing received readings.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Write operations are non-blocking and batched.
type Recorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig

	// connected tracks current connection state.
	connected bool
	mu        sync.RWMutex

	// onError is called when async write errors occur.
	onError func(err error)
}

// Connect establishes a connection to the InfluxDB server.
//
// It performs the following setup:
//  1. Creates the client with token authentication
//  2. Verifies connectivity with a ping
//  3. Configures the non-blocking write API with batching
//  4. Sets up error delivery for async write failures
//
// Parameters:
//   - cfg: InfluxDB configuration from config.yaml
//
// Returns:
//   - *Recorder: Connected recorder ready for use
//   - error: ErrDisabled if the sink is disabled, or wrapped
//     ErrConnectionFailed if the server is unreachable
func Connect(cfg config.InfluxDBConfig) (*Recorder, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(defaultBatchSize).
			SetFlushInterval(defaultFlushIntervalMs),
	)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	r := &Recorder{
		client:    client,
		writeAPI:  writeAPI,
		cfg:       cfg,
		connected: true,
	}

	go r.handleWriteErrors(writeAPI.Errors())

	return r, nil
}

// handleWriteErrors processes async write errors from the WriteAPI.
func (r *Recorder) handleWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		r.mu.RLock()
		callback := r.onError
		r.mu.RUnlock()

		if callback != nil {
			callback(err)
		}
	}
}

// WriteReading records one received numeric reading.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - clientID: identifier of the receiving client
//   - topic: the topic the reading arrived on
//   - value: the numeric payload
func (r *Recorder) WriteReading(clientID, topic string, value float64) {
	if !r.IsConnected() {
		return
	}

	point := write.NewPoint(
		"readings",
		map[string]string{
			"client_id": clientID,
			"topic":     topic,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	r.writeAPI.WritePoint(point)
}

// Close gracefully shuts down the InfluxDB connection, flushing pending
// writes first.
//
// Returns:
//   - error: nil (the InfluxDB client Close doesn't return errors)
func (r *Recorder) Close() error {
	if r.client == nil {
		return nil
	}

	r.mu.Lock()
	r.connected = false
	r.mu.Unlock()

	r.writeAPI.Flush()
	r.client.Close()

	return nil
}

// HealthCheck verifies the InfluxDB connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (r *Recorder) HealthCheck(ctx context.Context) error {
	if !r.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := r.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}

	return nil
}

// IsConnected returns the current connection state.
func (r *Recorder) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected
}

// SetOnError sets a callback invoked when async write errors occur.
//
// Since writes are non-blocking, errors are delivered asynchronously.
// Use this callback to log or handle write failures.
func (r *Recorder) SetOnError(callback func(err error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onError = callback
}

// Flush forces all pending writes to be sent.
//
// Blocks until all buffered points are written. Safe to call after
// Close() (no-op).
func (r *Recorder) Flush() {
	if r.writeAPI == nil || !r.IsConnected() {
		return
	}
	r.writeAPI.Flush()
}
