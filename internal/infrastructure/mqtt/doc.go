// Package mqtt provides MQTT client connectivity for the Gray Logic hub.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing unified state (retained) and command results per device
//   - The backend state subscription, restored on reconnect
//   - Retained hub presence on {prefix}/system/status, with a Last Will
//   - Connection health reporting
//
// # Architecture
//
// MQTT is one of the update-delivery paths into the device core. Bridges and
// webhook relays publish backend-native state per device; the hub translates
// it and republishes unified state for any consumer.
//
//	Backend relay → {prefix}/state/{backend}/{localId} → hub
//	hub → {prefix}/core/device/{backend}:{localId}/state (retained)
//	hub → {prefix}/core/device/{backend}:{localId}/result
//
// # Security Considerations
//
//   - Use TLS outside a trusted LAN (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.SubscribeBackendStates(func(backend, localID string, payload []byte) error {
//	    return ingest(backend, localID, payload)
//	})
//
//	err = client.PublishDeviceState("tuya:bf3a0c", payload)
package mqtt
