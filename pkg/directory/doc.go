// Package directory pins the recipient-directory contract the delivery
// engine consumes: user id in, channel-specific address out.
package directory
