// Package influxdb provides InfluxDB connectivity for the RS-485 bridge.
//
// It wraps the official influxdb-client-go v2 library with the bridge's
// patterns for connection management, metric writing, and health
// monitoring.
//
// # Purpose
//
// This package handles time-series output for:
//   - Per-bank connection counters (frames, bytes, reconnects, errors)
//   - Device state changes (switch on/off, cover position)
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "graylogic",
//	    Bucket:  "rs485",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteBankCounters("hall", true, 1042, 96, 2, 0)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via
// the SetOnError callback. Connection and health check errors are
// returned directly.
package influxdb
