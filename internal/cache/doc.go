// Package cache provides a small byte-oriented cache used for read-through
// caching of backend HTTP responses.
//
// Backends:
//   - RedisCache: shared cache in Redis, keys namespaced by a prefix
//   - Memory: process-local cache with TTL, for tests and single-shot CLI runs
//   - Nop: caching disabled
package cache
