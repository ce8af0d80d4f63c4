package auth

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig holds configuration for response time padding
type TimingConfig struct {
	MinDuration time.Duration // Minimum total duration of a padded operation
	Jitter      time.Duration // Random extra delay range
}

// TimingDelay pads operations to a minimum duration so that callers cannot
// tell "unknown email" from "wrong password" (or a sent reset email) by timing
type TimingDelay struct {
	config TimingConfig
}

func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{config: config}
}

// cryptoRandDuration returns a random duration in [0, max)
func cryptoRandDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}

	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return 0
	}
	return time.Duration(binary.BigEndian.Uint64(randomBytes) % uint64(max))
}

// WaitFrom blocks until at least MinDuration (plus jitter) has elapsed since
// start, or ctx is done
func (td *TimingDelay) WaitFrom(ctx context.Context, start time.Time) {
	target := td.config.MinDuration + cryptoRandDuration(td.config.Jitter)

	remaining := target - time.Since(start)
	if remaining <= 0 {
		return
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
