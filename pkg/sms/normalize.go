package sms

import (
	"container/list"
	"fmt"
	"strings"
	"sync"
)

const (
	minPhoneDigits = 7
	maxPhoneDigits = 15
)

// normalizePhone canonicalizes a raw phone number: strip everything but
// digits, prepend the configured country code when the number carries none,
// and ensure a leading +. The raw input must have had a + prefix (or a
// leading 00) to be considered already international.
func normalizePhone(raw, countryCode string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	international := strings.HasPrefix(trimmed, "+")

	var digits strings.Builder
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	num := digits.String()
	if strings.HasPrefix(num, "00") {
		international = true
		num = num[2:]
	}

	if !international && countryCode != "" && !strings.HasPrefix(num, countryCode) {
		num = countryCode + num
	}

	if len(num) < minPhoneDigits || len(num) > maxPhoneDigits {
		return "", fmt.Errorf("%w: %q has %d digits", ErrInvalidPhoneNumber, raw, len(num))
	}
	return "+" + num, nil
}

// phoneCache memoizes normalization keyed by the raw input. It is a pure
// cache: a miss recomputes from scratch, so it is never the source of truth.
type phoneCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	eviction *list.List
}

type phoneCacheEntry struct {
	raw        string
	normalized string
}

func newPhoneCache(capacity int) *phoneCache {
	if capacity <= 0 {
		capacity = 1024
	}
	return &phoneCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
	}
}

func (c *phoneCache) get(raw string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[raw]; ok {
		c.eviction.MoveToFront(elem)
		return elem.Value.(*phoneCacheEntry).normalized, true
	}
	return "", false
}

func (c *phoneCache) put(raw, normalized string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[raw]; ok {
		c.eviction.MoveToFront(elem)
		elem.Value.(*phoneCacheEntry).normalized = normalized
		return
	}
	elem := c.eviction.PushFront(&phoneCacheEntry{raw: raw, normalized: normalized})
	c.items[raw] = elem
	if c.eviction.Len() > c.capacity {
		oldest := c.eviction.Back()
		if oldest != nil {
			c.eviction.Remove(oldest)
			delete(c.items, oldest.Value.(*phoneCacheEntry).raw)
		}
	}
}
