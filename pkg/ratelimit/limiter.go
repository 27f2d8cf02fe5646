package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Window is one fixed time bucket with a send ceiling. A limiter can layer
// several independent windows; violating any one blocks the send.
type Window struct {
	Name     string        // window identifier, part of the counter key
	Interval time.Duration // bucket width
	Limit    int           // maximum sends per bucket
}

func (w Window) validate() error {
	if w.Name == "" {
		return fmt.Errorf("%w: window name is required", ErrInvalidConfig)
	}
	if w.Interval <= 0 {
		return fmt.Errorf("%w: window %q interval must be positive, got %v", ErrInvalidConfig, w.Name, w.Interval)
	}
	if w.Limit <= 0 {
		return fmt.Errorf("%w: window %q limit must be positive, got %d", ErrInvalidConfig, w.Name, w.Limit)
	}
	return nil
}

// Result reports the outcome of a rate-limit check.
type Result struct {
	Allowed bool
	Window  string    // window that made the decision (the violated one when denied)
	Limit   int
	Count   int64     // post-increment counter value
	ResetAt time.Time // end of the current bucket
}

// RetryAfter returns how long to wait before the bucket rolls over.
// Returns 0 if the request was allowed.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed {
		return 0
	}
	return time.Until(r.ResetAt)
}

// Store is the counter backend. Incr must be an atomic increment on the
// bucket counter: two concurrent calls may never both observe the same
// post-increment value.
type Store interface {
	// Incr increments the counter for key's current bucket and returns the
	// post-increment value plus the bucket end time. The counter self-expires
	// at bucket rollover.
	Incr(ctx context.Context, key string, interval time.Duration) (count int64, resetAt time.Time, err error)
}

// Limiter applies fixed-window counting over one or more windows for a scope
// key. The counter is incremented first and compared after, and a denied
// increment is not reversed: rejected attempts still consume window budget
// until the bucket expires.
type Limiter struct {
	store   Store
	windows []Window
	prefix  string
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithPrefix overrides the default "rl" counter key prefix.
func WithPrefix(prefix string) LimiterOption {
	return func(l *Limiter) {
		if prefix != "" {
			l.prefix = prefix
		}
	}
}

// NewLimiter creates a limiter over the given windows.
func NewLimiter(store Store, windows []Window, opts ...LimiterOption) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if len(windows) == 0 {
		return nil, fmt.Errorf("%w: at least one window is required", ErrInvalidConfig)
	}
	for _, w := range windows {
		if err := w.validate(); err != nil {
			return nil, err
		}
	}

	l := &Limiter{store: store, windows: windows, prefix: "rl"}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Allow checks every window for the scope key. The first violated window
// produces the denial; windows after it are left untouched.
func (l *Limiter) Allow(ctx context.Context, scope string) (*Result, error) {
	for _, w := range l.windows {
		key := fmt.Sprintf("%s:%s:%s", l.prefix, scope, w.Name)
		count, resetAt, err := l.store.Incr(ctx, key, w.Interval)
		if err != nil {
			return nil, err
		}
		if count > int64(w.Limit) {
			return &Result{Window: w.Name, Limit: w.Limit, Count: count, ResetAt: resetAt}, nil
		}
	}

	last := l.windows[len(l.windows)-1]
	return &Result{Allowed: true, Window: last.Name, Limit: last.Limit}, nil
}
