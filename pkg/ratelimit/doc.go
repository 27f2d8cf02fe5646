// Package ratelimit bounds send volume with fixed-window counters, applied
// per recipient and globally, per channel. An adapter layers as many
// independent windows as its channel needs (the SMS channel runs four at
// once) and rejects the send when any window is over its ceiling. Rejected
// attempts keep their increment: the counter self-expires at window end.
package ratelimit
