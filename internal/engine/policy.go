package engine

import "time"

// RetryPolicy bounds how the engine retries a failed step attempt.
//
// Delay before attempt n+1 is InitialInterval * BackoffMultiplier^(n-1),
// capped at MaximumInterval. MaximumAttempts counts every try including the
// first; history for a step that exhausted its retries shows exactly
// MaximumAttempts attempt records.
type RetryPolicy struct {
	InitialInterval   time.Duration
	BackoffMultiplier float64
	MaximumInterval   time.Duration
	MaximumAttempts   int
}

// DefaultRetryPolicy is applied when StepOptions carries no policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval:   time.Second,
		BackoffMultiplier: 2.0,
		MaximumInterval:   time.Minute,
		MaximumAttempts:   5,
	}
}

// delay returns the backoff before the given attempt (attempt 2 is the first
// retry). Attempt 1 has no delay.
func (p RetryPolicy) delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	d := p.InitialInterval
	for i := 2; i < attempt; i++ {
		d = time.Duration(float64(d) * p.BackoffMultiplier)
		if p.MaximumInterval > 0 && d >= p.MaximumInterval {
			return p.MaximumInterval
		}
	}
	if p.MaximumInterval > 0 && d > p.MaximumInterval {
		return p.MaximumInterval
	}
	return d
}

// normalize fills zero fields from the default policy so partially specified
// policies behave sensibly.
func (p RetryPolicy) normalize() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.InitialInterval <= 0 {
		p.InitialInterval = def.InitialInterval
	}
	if p.BackoffMultiplier < 1 {
		p.BackoffMultiplier = def.BackoffMultiplier
	}
	if p.MaximumInterval <= 0 {
		p.MaximumInterval = def.MaximumInterval
	}
	if p.MaximumAttempts <= 0 {
		p.MaximumAttempts = def.MaximumAttempts
	}
	return p
}

// StepOptions configures one durable step.
type StepOptions struct {
	// StartToClose bounds a single attempt's duration. Zero means no
	// per-attempt timeout. A timed-out attempt counts as retryable.
	StartToClose time.Duration

	// Retry overrides the engine's default retry policy for this step.
	Retry RetryPolicy

	// HeartbeatInterval is advisory for long activities; the engine only
	// observes cancellation when the activity calls Heartbeat.
	HeartbeatInterval time.Duration
}
