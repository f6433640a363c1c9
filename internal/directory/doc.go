// Package directory provides the Unified Device Directory.
//
// Adapters are registered explicitly at startup. Every call carrying a
// universal device id ("{backend}:{localId}") is routed to the adapter
// registered for its backend tag; unknown tags and unknown local ids both
// yield DeviceNotFound. Listings fan out to all adapters concurrently and
// tolerate individual adapter failures.
package directory
