// Package hub assembles the device core.
//
// A Hub is built once at startup from an explicitly populated
// directory.Directory. It exposes the entry points external code uses:
// device lookup and listing, cached and refreshed state reads, single and
// batch command execution, and push ingestion for update sources that
// deliver state without being asked.
//
// Usage:
//
//	dir := directory.New()
//	dir.Register(adapter) // one per enabled backend
//	h := hub.New(dir, hub.DefaultConfig())
//	if err := h.Initialize(ctx); err != nil {
//	    log.Warn("some backends unavailable", "error", err)
//	}
//	defer h.Close(ctx)
//
//	res := h.ExecuteCommand(ctx, "smartthings:abc", device.Command{
//	    Capability: device.CapDimmer, Name: device.CmdSetLevel,
//	    Args: []device.Value{device.Number(75)},
//	}, executor.Options{})
package hub
