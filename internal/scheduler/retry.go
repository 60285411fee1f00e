package scheduler

import "time"

// Policy is the retry contract for failed tiles: up to MaxRetries extra
// attempts with exponential backoff, capped so a long outage never produces
// hour-long sleeps.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Cap        time.Duration
}

// DefaultPolicy retries three times starting at one second, capped at a
// minute.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 3, BaseDelay: time.Second, Cap: time.Minute}
}

// DelayFor returns the backoff before retry number attempt (zero-based):
// BaseDelay * 2^attempt, capped. Delays are non-decreasing in attempt.
func (p Policy) DelayFor(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.Cap > 0 && d >= p.Cap {
			return p.Cap
		}
	}
	if p.Cap > 0 && d > p.Cap {
		return p.Cap
	}
	return d
}
