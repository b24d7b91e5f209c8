package job

import (
	"math"
	"time"
)

// Backoff computes the delay before a retry: Unit * Base^retryCount.
// Defaults (base 5, unit 60s) give 1m, 5m, 25m, ...
type Backoff struct {
	Base float64
	Unit time.Duration
}

func DefaultBackoff() Backoff {
	return Backoff{Base: 5, Unit: time.Minute}
}

func (b Backoff) Delay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	base := b.Base
	if base < 1 {
		base = 1
	}
	unit := b.Unit
	if unit <= 0 {
		unit = time.Minute
	}
	d := time.Duration(math.Pow(base, float64(retryCount)) * float64(unit))
	// Guard against overflow on absurd retry counts.
	if d <= 0 || d > 30*24*time.Hour {
		return 30 * 24 * time.Hour
	}
	return d
}
