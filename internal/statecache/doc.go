// Package statecache provides the Device State Cache.
//
// The cache serves the freshest known unified state for each device. Reads
// younger than the TTL are answered from memory; older or missing entries
// trigger one live fetch per key no matter how many callers are waiting.
// Fetches are retried with bounded backoff on retryable failures.
//
// Every stored state, whether fetched or pushed, is published to
// subscribers registered with Subscribe.
package statecache
