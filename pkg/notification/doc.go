// Package notification defines the core domain model shared by every channel
// adapter: the immutable Notification input, the typed metadata accessors,
// the per-attempt DeliveryResult with its error taxonomy, the common Channel
// contract, the concurrent batch helper used by every SendBulk, and the
// durable delivery-record store.
//
// Per-item failures are values, never panics: anything that goes wrong after
// an adapter is constructed surfaces as DeliveryResult.Error. Only
// construction itself may fail with a Go error.
package notification
