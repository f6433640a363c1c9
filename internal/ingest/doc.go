// Package ingest bridges the hub and MQTT.
//
// Relays that receive backend webhooks or poll local bridges publish native
// state per device:
//
//	graylogic/state/smartthings/6f1d2c
//	{"values":[{"capability":"switchLevel","attribute":"level","value":40}],
//	 "timestamp":"2026-10-01T09:00:00Z"}
//
// The bridge translates each message through the owning backend's capability
// registry and stores it in the state cache. With PublishState set, every
// cache update goes back out as retained unified state on
// graylogic/core/device/{id}/state, and command results arrive on
// graylogic/core/device/{id}/result when the bridge is installed as a recorder.
package ingest
