package realtime

import (
	"math"
	"time"
)

// ReconnectPolicy controls how a dropped connection is re-established
// with exponential backoff. When MaxAttempts consecutive attempts fail
// the channel terminates; a later Open starts over.
type ReconnectPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultReconnectPolicy returns a ReconnectPolicy with sensible
// defaults: 5 attempts, 500ms initial delay, 2x multiplier, 2s max delay.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		MaxAttempts:  5,
		InitialDelay: 500 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     2 * time.Second,
	}
}

// withDefaults fills unset fields from DefaultReconnectPolicy. A
// partially specified policy must never produce a zero delay: that
// would turn reconnection into a hot loop.
func (p ReconnectPolicy) withDefaults() ReconnectPolicy {
	def := DefaultReconnectPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = def.InitialDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	return p
}

// Exhausted reports whether the attempt count (1-indexed) has used up
// the budget.
func (p ReconnectPolicy) Exhausted(attempt int) bool {
	return attempt > p.MaxAttempts
}

// NextDelay returns the backoff delay for the given attempt number
// (1-indexed). The delay is InitialDelay * Multiplier^(attempt-1),
// capped at MaxDelay.
func (p ReconnectPolicy) NextDelay(attempt int) time.Duration {
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}
