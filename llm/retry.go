package llm

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy controls the exponential backoff applied to transient
// backend failures.
type RetryPolicy struct {
	MaxRetries int           // retry attempts after the initial call (0 disables retry)
	BaseDelay  time.Duration // delay before the first retry
	MaxDelay   time.Duration // backoff cap
	Jitter     bool          // randomize each delay by +-25%
}

// DefaultRetryPolicy returns defaults suitable for most model backends.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Jitter:     true,
	}
}

// normalize clamps invalid values to usable defaults.
func (p RetryPolicy) normalize() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 1 * time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	return p
}

// delay computes the backoff before retry attempt n (1-based):
// base * 2^(n-1), capped at MaxDelay, with optional +-25% jitter to keep
// concurrent sessions from retrying in lockstep.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter {
		jitter := d * 0.25
		d = d + (rand.Float64()*2-1)*jitter
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}
