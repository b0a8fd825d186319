package resilience

import (
	"time"

	"github.com/sells-group/lead-engine/internal/config"
)

// PolicyFromConfig converts configured retry values, keeping defaults for
// anything unset.
func PolicyFromConfig(c config.RetryConfig) Policy {
	p := DefaultPolicy()
	if c.MaxAttempts > 0 {
		p.Attempts = c.MaxAttempts
	}
	if c.InitialBackoffMs > 0 {
		p.Base = time.Duration(c.InitialBackoffMs) * time.Millisecond
	}
	if c.MaxBackoffMs > 0 {
		p.Cap = time.Duration(c.MaxBackoffMs) * time.Millisecond
	}
	if c.Multiplier > 0 {
		p.Factor = c.Multiplier
	}
	if c.JitterFraction >= 0 {
		p.Jitter = c.JitterFraction
	}
	return p
}

// BreakerFromConfig builds a named breaker from configured values.
func BreakerFromConfig(name string, c config.CircuitConfig, counts func(error) bool) *Breaker {
	return NewBreaker(name, c.FailureThreshold, time.Duration(c.ResetTimeoutSecs)*time.Second, counts)
}
