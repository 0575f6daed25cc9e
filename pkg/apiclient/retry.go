package apiclient

import (
	"math"
	"time"
)

// Default retry configuration.
const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = 1 * time.Second
	DefaultMaxDelay     = 5 * time.Second
)

// RetryPolicy decides whether a failed attempt is retried and how long to
// wait first.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// RetryUnsafeVerbs allows retrying create, update, remove and upload
	// requests. A lost acknowledgement can then apply a write twice.
	RetryUnsafeVerbs bool
}

// DefaultRetryPolicy retries every verb, three times, at 1s, 2s and 4s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:       DefaultMaxRetries,
		InitialDelay:     DefaultInitialDelay,
		MaxDelay:         DefaultMaxDelay,
		RetryUnsafeVerbs: true,
	}
}

// RetryState is the retry progress of one logical request. Attempt counts
// the retries already scheduled and NextDelay is the wait before the most
// recently scheduled one.
type RetryState struct {
	Attempt   int
	NextDelay time.Duration
}

// Retryable reports whether failures of kind k are transient.
func Retryable(k Kind) bool {
	switch k {
	case KindTimeout, KindUnreachable, KindServer:
		return true
	}
	return false
}

// Next returns the state for the following attempt, or false when err must
// be surfaced.
func (p RetryPolicy) Next(s RetryState, verb Verb, err *Error) (RetryState, bool) {
	if err == nil || !Retryable(err.Kind) {
		return s, false
	}
	if !verb.Safe() && !p.RetryUnsafeVerbs {
		return s, false
	}
	if s.Attempt >= p.MaxRetries {
		return s, false
	}
	attempt := s.Attempt + 1
	return RetryState{Attempt: attempt, NextDelay: p.Delay(attempt)}, true
}

// Delay is min(InitialDelay * 2^(attempt-1), MaxDelay) for attempt >= 1.
// Without a MaxDelay the doubling saturates at the largest Duration.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	d := p.InitialDelay
	for i := 1; i < attempt; i++ {
		if d > math.MaxInt64/2 {
			d = math.MaxInt64
			break
		}
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
