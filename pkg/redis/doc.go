// Package redis connects to Redis with go-redis and exposes a health probe.
// The notifier uses it to share preference lookups between replicas.
package redis
