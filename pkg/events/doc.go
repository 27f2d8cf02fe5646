// Package events models the adapters' outbound side channel (tokenRegistered,
// emailBounce, notificationRead, ...) as an explicit subscription interface.
// The delivery contract stays correct with zero subscribers: Emit never
// blocks and never fails a send.
package events
