// Package api provides the HTTP REST API and WebSocket state stream for the
// Gray Logic hub.
//
// It exposes the unified device directory, cached device state, command
// execution and the command journal to local consumers (dashboards, scripts,
// schedulers). Authentication is left to the network boundary.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// # Endpoints
//
//	GET  /api/v1/health
//	GET  /api/v1/devices?backend=&capability=&room=&id=
//	GET  /api/v1/devices/{id}
//	GET  /api/v1/devices/{id}/state?refresh=true
//	PUT  /api/v1/devices/{id}/state
//	POST /api/v1/devices/{id}/commands
//	POST /api/v1/commands/batch
//	GET  /api/v1/commands?device_id=&failed=&since=&limit=&offset=
//	GET  /api/v1/ws
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
