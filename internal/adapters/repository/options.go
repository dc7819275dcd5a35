package repository

import "time"

// Option tunes the PostgreSQL ledger.
type Option func(*pgOptions)

type pgOptions struct {
	maxConns        int32
	maxConnIdleTime time.Duration
	migrate         bool
}

// WithMaxConns caps the pool size.
func WithMaxConns(n int32) Option {
	return func(o *pgOptions) {
		if n > 0 {
			o.maxConns = n
		}
	}
}

// WithMaxConnIdleTime closes connections idle for longer than d.
func WithMaxConnIdleTime(d time.Duration) Option {
	return func(o *pgOptions) {
		if d > 0 {
			o.maxConnIdleTime = d
		}
	}
}

// WithMigrate applies the embedded schema on open.
func WithMigrate(enabled bool) Option {
	return func(o *pgOptions) { o.migrate = enabled }
}
