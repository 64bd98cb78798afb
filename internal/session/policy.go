package session

import (
	"time"

	"github.com/yolodolo42/questline/internal/config"
)

// maxShift keeps the exponential delay from overflowing.
const maxShift = 30

// ReconnectPolicy decides how long to wait between reconnect attempts and how
// many attempts are made before giving up.
type ReconnectPolicy struct {
	Exponential bool
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxRetries  int
}

// DefaultPolicy retries every three seconds, five times.
func DefaultPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		BaseDelay:  3 * time.Second,
		MaxDelay:   3 * time.Second,
		MaxRetries: 5,
	}
}

// PolicyFromConfig converts the reconnect section of the config.
func PolicyFromConfig(c config.Reconnect) ReconnectPolicy {
	return ReconnectPolicy{
		Exponential: c.Mode == config.ReconnectExponential,
		BaseDelay:   c.BaseDelay,
		MaxDelay:    c.MaxDelay,
		MaxRetries:  c.MaxRetries,
	}
}

// Delay returns the wait before retry number attempt (zero-based).
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	if !p.Exponential {
		return p.BaseDelay
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxShift {
		attempt = maxShift
	}
	d := p.BaseDelay * time.Duration(1<<uint(attempt))
	if p.MaxDelay > 0 && (d > p.MaxDelay || d <= 0) {
		d = p.MaxDelay
	}
	return d
}
