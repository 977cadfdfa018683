package backoff

import (
	"math/rand"
	"time"
)

// Policy computes the delay to wait before a given retry attempt.
// Attempts are numbered from 0.
type Policy interface {
	Delay(attempt int) time.Duration
}

// Fixed waits the same interval between every attempt.
type Fixed struct {
	Interval time.Duration
}

// NewFixed returns a Policy with a constant delay between attempts.
func NewFixed(interval time.Duration) *Fixed {
	return &Fixed{Interval: interval}
}

func (f *Fixed) Delay(attempt int) time.Duration {
	return f.Interval
}

// Exponential doubles the base delay per attempt up to a maximum, with
// optional jitter to avoid synchronized reconnect storms.
type Exponential struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Jitter    bool
}

// NewExponential returns a Policy that backs off exponentially from base
// up to max.
func NewExponential(base, max time.Duration, jitter bool) *Exponential {
	return &Exponential{BaseDelay: base, MaxDelay: max, Jitter: jitter}
}

func (e *Exponential) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := e.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= e.MaxDelay {
			delay = e.MaxDelay
			break
		}
	}

	if e.Jitter {
		// Spread the delay across [0.75*delay, 1.25*delay).
		delay = time.Duration(float64(delay) * (0.75 + rand.Float64()*0.5))
	}

	return delay
}
