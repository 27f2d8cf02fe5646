// Package suppression implements the durable per-channel set of recipients
// who must never receive a channel's messages: opt-outs, hard bounces,
// complaints and manual blocks. Adapters check it before every transport
// call; a match short-circuits the send with no transport attempt.
package suppression
