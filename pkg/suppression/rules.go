package suppression

import (
	"context"
	"strings"
)

// ReasonBlocklisted marks recipients matched by a static block pattern.
const ReasonBlocklisted Reason = "blocklisted"

// Rules is a static blocklist and allowlist applied on top of the durable
// store. Patterns match case-insensitively and may contain one '*' wildcard,
// so "*@qa.example.com" covers a domain and "+1900*" a number prefix. Allow
// patterns exempt a recipient from the block patterns; they never override a
// durable suppression entry.
type Rules struct {
	Block []string
	Allow []string
}

// Blocked reports whether the recipient matches a block pattern and no
// allow pattern, and the matching pattern when it does.
func (r Rules) Blocked(recipient string) (bool, string) {
	for _, p := range r.Allow {
		if matchPattern(p, recipient) {
			return false, ""
		}
	}
	for _, p := range r.Block {
		if matchPattern(p, recipient) {
			return true, p
		}
	}
	return false, ""
}

// matchPattern matches value against a literal pattern, or a pattern with a
// single '*' matching any run of characters.
func matchPattern(pattern, value string) bool {
	pattern = strings.ToLower(pattern)
	value = strings.ToLower(value)
	i := strings.IndexByte(pattern, '*')
	if i < 0 {
		return pattern == value
	}
	prefix, suffix := pattern[:i], pattern[i+1:]
	return len(value) >= len(prefix)+len(suffix) &&
		strings.HasPrefix(value, prefix) && strings.HasSuffix(value, suffix)
}

// RuleStore layers static Rules over a durable Store, so adapters pick up
// pattern blocking through their normal suppression check. Durable entries
// win; a recipient matched only by a block pattern is reported blocklisted
// without being written to the store, so the pattern set can change without
// migrations. Suppress, Remove and List pass through to the wrapped store.
type RuleStore struct {
	Store
	rules Rules
}

// WithRules wraps a store with static block and allow patterns.
func WithRules(store Store, rules Rules) *RuleStore {
	return &RuleStore{Store: store, rules: rules}
}

func (s *RuleStore) IsSuppressed(ctx context.Context, channel, recipientKey string) (bool, Reason, error) {
	blocked, reason, err := s.Store.IsSuppressed(ctx, channel, recipientKey)
	if err != nil || blocked {
		return blocked, reason, err
	}
	if matched, _ := s.rules.Blocked(recipientKey); matched {
		return true, ReasonBlocklisted, nil
	}
	return false, "", nil
}
