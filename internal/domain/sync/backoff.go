package sync

import "time"

// Default backoff configuration
const (
	DefaultBaseDelay           = time.Second
	DefaultMaxDelay            = 5 * time.Minute
	DefaultEscalationThreshold = 5
)

// BackoffPolicy decides when a failed operation may be retried and when it
// is escalated for operator attention. Escalation changes presentation
// priority only; retries continue.
type BackoffPolicy struct {
	BaseDelay           time.Duration
	MaxDelay            time.Duration
	EscalationThreshold int
}

// DefaultBackoffPolicy returns the default policy: 1s doubling per failure,
// capped at 5 minutes, escalation after 5 attempts
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		BaseDelay:           DefaultBaseDelay,
		MaxDelay:            DefaultMaxDelay,
		EscalationThreshold: DefaultEscalationThreshold,
	}
}

// Delay returns the backoff delay after the given number of attempts.
// Attempts start at 1; delays are base, 2*base, 4*base, ... up to the cap.
func (p BackoffPolicy) Delay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	// Guard the shift: past this point the doubling has long exceeded any
	// sane cap and would overflow.
	if attempts > 32 {
		return p.MaxDelay
	}
	delay := p.BaseDelay * time.Duration(1<<uint(attempts-1))
	if delay > p.MaxDelay || delay <= 0 {
		delay = p.MaxDelay
	}
	return delay
}

// NextAttemptAt computes the earliest next delivery instant after a failure
func (p BackoffPolicy) NextAttemptAt(attempts int, now time.Time) time.Time {
	return now.Add(p.Delay(attempts))
}

// DueNow reports whether the operation may be attempted at the given instant
func (p BackoffPolicy) DueNow(op *QueuedOperation, now time.Time) bool {
	return op.Deliverable(now)
}

// Escalated reports whether the operation has crossed the failure threshold
// and should be flagged "stuck, needs manual attention"
func (p BackoffPolicy) Escalated(op *QueuedOperation) bool {
	return op.Attempts >= p.EscalationThreshold
}
