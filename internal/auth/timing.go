package auth

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig holds the padding applied to failed logins
type TimingConfig struct {
	BaseDelay   time.Duration // Fixed delay added to every failure
	RandomDelay time.Duration // Upper bound of a uniformly random extra delay
}

// TimingDelay pads failed logins so "unknown subject", "wrong password" and
// "blocked" take a similar amount of time.
type TimingDelay struct {
	config TimingConfig
}

// NewTimingDelay creates a new TimingDelay instance
func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{config: config}
}

// cryptoRandDuration returns a secure random duration in [0, max)
func cryptoRandDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}

	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return 0
	}

	randomValue := binary.BigEndian.Uint64(randomBytes)
	return time.Duration(randomValue % uint64(max))
}

// Target returns the total delay for one failure
func (td *TimingDelay) Target() time.Duration {
	if td == nil {
		return 0
	}
	return td.config.BaseDelay + cryptoRandDuration(td.config.RandomDelay)
}

// WaitFrom sleeps until at least Target() has elapsed since start.
// Returns early if ctx is done.
func (td *TimingDelay) WaitFrom(ctx context.Context, start time.Time) {
	target := td.Target()
	if target <= 0 {
		return
	}

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
