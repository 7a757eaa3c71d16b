package syncer

import (
	"math/rand/v2"
	"time"
)

// Config holds the sync tuning knobs.
type Config struct {
	// MaxRetries is the number of failed attempts after which an entry is
	// dead-lettered.
	MaxRetries int64

	// BaseBackoff is the delay after the first failure; it doubles with
	// every further failure up to MaxBackoff.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// Jitter spreads each delay by up to this fraction in either direction.
	Jitter float64

	// RemoteTimeout bounds every remote call.
	RemoteTimeout time.Duration

	// Interval is the period of background queue passes in Run.
	Interval time.Duration
}

// DefaultConfig returns the defaults used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MaxRetries:    8,
		BaseBackoff:   5 * time.Second,
		MaxBackoff:    10 * time.Minute,
		Jitter:        0.2,
		RemoteTimeout: 15 * time.Second,
		Interval:      time.Minute,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = d.BaseBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	if c.MaxBackoff < c.BaseBackoff {
		c.MaxBackoff = c.BaseBackoff
	}
	if c.Jitter < 0 || c.Jitter >= 1 {
		c.Jitter = d.Jitter
	}
	if c.RemoteTimeout <= 0 {
		c.RemoteTimeout = d.RemoteTimeout
	}
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	return c
}

// Backoff returns the delay before the next attempt of an entry that has
// failed retries times, before jitter.
func (c Config) Backoff(retries int64) time.Duration {
	if retries < 1 {
		return 0
	}
	d := c.BaseBackoff
	for i := int64(1); i < retries; i++ {
		if d >= c.MaxBackoff/2 {
			return c.MaxBackoff
		}
		d *= 2
	}
	return min(d, c.MaxBackoff)
}

// jitter scales d by a random factor in [1-Jitter, 1+Jitter]. r returns a
// value in [0, 1).
func (c Config) jitter(d time.Duration, r func() float64) time.Duration {
	if c.Jitter == 0 || d == 0 {
		return d
	}
	if r == nil {
		r = rand.Float64
	}
	factor := 1 + c.Jitter*(2*r()-1)
	return time.Duration(float64(d) * factor)
}
