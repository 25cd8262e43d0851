package channel

import (
	"time"
)

// Retry timing constants from the reference client behavior.
const (
	// InitialRetryDelay is the sleep after the first failed attempt.
	InitialRetryDelay = 0

	// StepRetryDelay is the fixed sleep after every later failed attempt.
	StepRetryDelay = 500 * time.Millisecond
)

// RetryPolicy configures reconnect timing. Dialing happens before any sleep,
// so the first failure's zero delay gives two immediate attempts. The zero
// value of Initial is the reference behavior; a zero Step falls back to the
// 500 ms default.
type RetryPolicy struct {
	// Initial is the sleep after the first failed attempt.
	Initial time.Duration

	// Step is the fixed sleep after each later failed attempt.
	Step time.Duration
}

// DefaultRetryPolicy returns the reference retry policy: 0, then 500 ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Initial: InitialRetryDelay,
		Step:    StepRetryDelay,
	}
}

func (p RetryPolicy) step() time.Duration {
	if p.Step <= 0 {
		return StepRetryDelay
	}
	return p.Step
}

// Retry tracks the state of one reconnect episode: the failure count and the
// current delay. It is created when a channel enters the reconnecting state
// and discarded when a connection attempt succeeds, so no retry state ever
// leaks across episodes or between channel instances.
//
// Retry is used by a single goroutine and is not safe for concurrent use.
type Retry struct {
	policy   RetryPolicy
	current  time.Duration
	attempts int
}

// NewRetry creates retry state for one reconnect episode.
func NewRetry(policy RetryPolicy) *Retry {
	return &Retry{
		policy:  policy,
		current: policy.Initial,
	}
}

// Next returns the delay to sleep after a failed attempt and advances the
// state: the first failure sleeps Initial, every later one the fixed step.
func (r *Retry) Next() time.Duration {
	delay := r.current
	r.attempts++
	r.current = r.policy.step()
	return delay
}

// Attempts returns the number of failed attempts so far in this episode.
func (r *Retry) Attempts() int {
	return r.attempts
}

// Reset returns the state to the start of an episode.
func (r *Retry) Reset() {
	r.current = r.policy.Initial
	r.attempts = 0
}
