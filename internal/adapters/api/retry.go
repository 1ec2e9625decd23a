package api

import (
	"math"
	"net/http"
	"strconv"
	"time"
)

// RetryPolicy controls the client's retry loop.
//
// MaxAttempts counts every attempt including the first. Delays grow as
// BaseDelay*Multiplier^attempt, capped at MaxDelay, plus up to Jitter*delay of
// random extra wait. Jitter only ever adds, so a retry never fires earlier than
// the computed backoff. MaxElapsed bounds the whole call including sleeps.
type RetryPolicy struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	Multiplier    float64
	MaxDelay      time.Duration
	Jitter        float64
	MaxElapsed    time.Duration
	MaxRetryAfter time.Duration
}

// DefaultRetryPolicy returns 5 attempts starting at 1s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   5,
		BaseDelay:     time.Second,
		Multiplier:    2,
		MaxDelay:      30 * time.Second,
		Jitter:        0.5,
		MaxElapsed:    2 * time.Minute,
		MaxRetryAfter: time.Minute,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.MaxRetryAfter <= 0 {
		p.MaxRetryAfter = def.MaxRetryAfter
	}
	return p
}

// BaseBackoff is the un-jittered delay after the given zero-based attempt
func (p RetryPolicy) BaseBackoff(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt))
	if d > float64(p.MaxDelay) || math.IsInf(d, 0) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Backoff adds jitter to BaseBackoff. rnd must return values in [0, 1).
func (p RetryPolicy) Backoff(attempt int, rnd func() float64) time.Duration {
	base := p.BaseBackoff(attempt)
	if p.Jitter == 0 || rnd == nil {
		return base
	}
	return base + time.Duration(float64(base)*p.Jitter*rnd())
}

// parseRetryAfter accepts delta-seconds or an HTTP date
func parseRetryAfter(header string, now time.Time) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
