package bracket

import "time"

// DefaultTouchTarget is the score that wins a direct-elimination bout.
const DefaultTouchTarget = 15

// Option configures a Builder or an Advancer.
type Option func(*config)

type config struct {
	touchTarget int
	now         func() time.Time
}

func newConfig(opts []Option) config {
	c := config{touchTarget: DefaultTouchTarget, now: time.Now}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithTouchTarget sets the winning score for reported bouts.
func WithTouchTarget(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.touchTarget = n
		}
	}
}

// WithClock overrides the time source for created_at and reported_at.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}
