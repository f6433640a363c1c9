// Package influxdb exports operational metrics of the Gray Logic hub to
// InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with the hub's
// patterns for connection management, batched writes, and health monitoring.
//
// # Purpose
//
// Three measurements are written:
//   - command_results: one point per executed command (outcome, attempts)
//   - state_cache: periodic cache counters (entries, hits, misses, fetches)
//   - backend_health: periodic per-backend health
//
// Device attribute values are not exported; the hub keeps no state history.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	h.SetRecorder(client) // command_results
//	go client.Report(ctx, h, 30*time.Second)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via a
// callback. Connection and health check errors are returned directly.
package influxdb
