// Package push implements the push channel adapter: fan-out to every
// enabled device token of the target user, per-platform provider batches,
// per-token outcome classification feeding the token registry lifecycle,
// and multicast delivery to many users at once.
//
// Providers plug in through the Sender interface; a logging development
// sender ships with the package.
package push
