// Package capability implements the per-backend capability registry.
//
// Each backend adapter owns one Registry: a static table mapping its native
// capability names, attribute names and commands onto the unified model in
// package device. Value conversions live next to the mapping entry they
// belong to, so a table row is the complete contract for one capability.
//
// Unknown native capabilities map to nothing and are excluded from a
// device's capability set. This is logged at debug level and never an error.
package capability
