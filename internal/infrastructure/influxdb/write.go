package influxdb

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/statecache"
)

// Measurement names.
const (
	MeasurementCommandResults = "command_results"
	MeasurementStateCache     = "state_cache"
	MeasurementBackendHealth  = "backend_health"
)

// outcomeOK tags successful command results.
const outcomeOK = "ok"

// Source supplies the periodic samples written by Report. *hub.Hub
// satisfies it.
type Source interface {
	Stats() statecache.Stats
	Health(ctx context.Context) map[device.Backend]error
	Backends() []device.Backend
}

// WriteCommandResult writes one command_results point, timestamped at the
// command's execution time. The outcome tag is "ok" or the error kind.
func (c *Client) WriteCommandResult(res device.CommandResult) {
	if !c.IsConnected() {
		return
	}

	outcome := outcomeOK
	if kind := res.ErrorKind(); kind != "" {
		outcome = string(kind)
	}
	at := res.ExecutedAt
	if at.IsZero() {
		at = time.Now()
	}

	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementCommandResults,
		map[string]string{
			"backend":    string(res.DeviceID.Backend()),
			"device_id":  string(res.DeviceID),
			"capability": string(res.Command.Capability),
			"command":    res.Command.Name,
			"outcome":    outcome,
		},
		map[string]any{
			"success":    res.Success,
			"dispatched": res.Dispatched,
			"attempts":   res.Attempts,
		},
		at,
	))
}

// Record writes res as a command_results point. It satisfies
// executor.Recorder and never fails; write errors surface through
// SetOnError.
func (c *Client) Record(_ context.Context, res device.CommandResult) error {
	c.WriteCommandResult(res)
	return nil
}

// WriteCacheStats writes one state_cache point.
func (c *Client) WriteCacheStats(stats statecache.Stats, at time.Time) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementStateCache,
		map[string]string{},
		map[string]any{
			"entries": stats.Entries,
			"hits":    stats.Hits,
			"misses":  stats.Misses,
			"fetches": stats.Fetches,
			"dropped": stats.Dropped,
		},
		at,
	))
}

// WriteBackendHealth writes one backend_health point per backend. Backends
// absent from failing are healthy.
func (c *Client) WriteBackendHealth(backends []device.Backend, failing map[device.Backend]error, at time.Time) {
	if !c.IsConnected() {
		return
	}

	for _, b := range backends {
		fields := map[string]any{"healthy": true}
		if err := failing[b]; err != nil {
			fields["healthy"] = false
			fields["error"] = err.Error()
		}
		c.writeAPI.WritePoint(write.NewPoint(
			MeasurementBackendHealth,
			map[string]string{"backend": string(b)},
			fields,
			at,
		))
	}
}

// Report samples src every interval until ctx ends, writing state_cache and
// backend_health points. It blocks; run it in its own goroutine.
func (c *Client) Report(ctx context.Context, src Source, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.WriteCacheStats(src.Stats(), now)
			c.WriteBackendHealth(src.Backends(), src.Health(ctx), now)
		}
	}
}
