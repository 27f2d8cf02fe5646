// Package tokens implements the push token registry: device token lifecycle
// from registration through failure tracking to disablement and retention
// purge. Registration deduplicates by token value, enforces a per-user cap
// by evicting the oldest token, and validates token shape per platform.
package tokens
