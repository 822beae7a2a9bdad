// Package ratelimit limits content lookups per client address with an
// in-memory token bucket per client.
//
// Buckets live in one process and are not shared between replicas. This
// keeps a single noisy client from starving the API; it is not a defense
// against distributed floods, which belong upstream.
package ratelimit
