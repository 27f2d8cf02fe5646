// Package redis provides the connection helper for the durable keyed store
// backing suppression lists, rate counters, the token registry, delivery
// records and metrics snapshots. The engine only relies on set membership,
// hash fields, sorted sets, atomic increments and key TTLs, so any
// redis-compatible server works.
package redis
