// Package inapp implements the in-app channel adapter: realtime-first
// delivery over live connections with persistent feed fallback, capped
// newest-first per-user feeds with fast unread and badge counters, read
// and dismiss bookkeeping, client payload sanitization and a periodic
// expiry sweeper.
package inapp
