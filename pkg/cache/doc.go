// Package cache provides a generic in-memory LRU cache with optional TTL.
//
// It backs the rendered-template cache and the per-user in-app broadcaster
// map. The evict callback lets owners release resources (for example close
// a broadcaster) when an entry is dropped.
package cache
