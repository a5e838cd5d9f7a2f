// Package recorder persists received readings to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library so the subscribing
// sample can store the numeric payloads it receives as time-series data.
//
// # Usage
//
//	rec, err := recorder.Connect(cfg.InfluxDB)
//	if errors.Is(err, recorder.ErrDisabled) {
//	    // run without persistence
//	}
//	defer rec.Close()
//
//	rec.WriteReading("iotcore-sub-01", "sample-application/random-number", 42)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines. The
// underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking; batch errors are delivered via the
// SetOnError callback. Connection errors are returned directly.
package recorder
