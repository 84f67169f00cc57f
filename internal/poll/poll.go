// Package poll implements the bounded polling loop used for every render wait.
package poll

import (
	"context"
	"time"
)

// Result reports whether the predicate was satisfied before the bound.
type Result int

const (
	TimedOut Result = iota
	Found
)

func (r Result) String() string {
	if r == Found {
		return "found"
	}
	return "timed_out"
}

// Predicate is checked once per attempt. An error counts as "not yet".
type Predicate func(ctx context.Context) (bool, error)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Policy is an interval/attempt bound with an optional last-chance sleep.
type Policy struct {
	Interval    time.Duration
	MaxAttempts int
	Fallback    time.Duration
}

// Default mirrors the widget's typical render time: 50 x 100ms, then 2s.
var Default = Policy{Interval: 100 * time.Millisecond, MaxAttempts: 50, Fallback: 2 * time.Second}

type options struct {
	sleep    Sleeper
	fallback time.Duration
}

// Option customizes Until.
type Option func(*options)

// WithSleeper replaces the real sleep, mostly for tests.
func WithSleeper(s Sleeper) Option {
	return func(o *options) {
		o.sleep = s
	}
}

// WithFallback sleeps d once after the last failed attempt.
func WithFallback(d time.Duration) Option {
	return func(o *options) {
		o.fallback = d
	}
}

// Until checks predicate up to maxAttempts times, sleeping interval between
// attempts. It returns Found as soon as the predicate holds. Context
// cancellation is the only error.
func Until(ctx context.Context, predicate Predicate, interval time.Duration, maxAttempts int, opts ...Option) (Result, error) {
	o := options{sleep: Sleep}
	for _, opt := range opts {
		opt(&o)
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return TimedOut, err
		}
		if ok, err := predicate(ctx); err == nil && ok {
			return Found, nil
		}
		if attempt < maxAttempts-1 {
			if err := o.sleep(ctx, interval); err != nil {
				return TimedOut, err
			}
		}
	}

	if o.fallback > 0 {
		if err := o.sleep(ctx, o.fallback); err != nil {
			return TimedOut, err
		}
	}
	return TimedOut, nil
}

// Run applies Until with the policy's bounds and fallback.
func (p Policy) Run(ctx context.Context, predicate Predicate, opts ...Option) (Result, error) {
	opts = append([]Option{WithFallback(p.Fallback)}, opts...)
	return Until(ctx, predicate, p.Interval, p.MaxAttempts, opts...)
}

// Sleep is a context-aware time.Sleep.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
