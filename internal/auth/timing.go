package auth

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig holds configuration for login timing hygiene.
type TimingConfig struct {
	BaseDelayMs   int // Base delay in milliseconds
	RandomDelayMs int // Random jitter range in milliseconds
}

// TimingDelay pads failed authentication paths so "no such account" and
// "wrong password" take similar time.
type TimingDelay struct {
	config TimingConfig
}

// NewTimingDelay creates a TimingDelay instance.
func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{config: config}
}

// Wait sleeps for base + jitter on failure. Successful logins are not
// delayed.
func (td *TimingDelay) Wait(success bool) {
	if success {
		return
	}

	delay := time.Duration(td.config.BaseDelayMs) * time.Millisecond
	if td.config.RandomDelayMs > 0 {
		if jitter, err := cryptoRandIntn(td.config.RandomDelayMs); err == nil {
			delay += time.Duration(jitter) * time.Millisecond
		}
	}

	if delay > 0 {
		time.Sleep(delay)
	}
}

// cryptoRandIntn returns a secure random number in [0, max). Uses
// crypto/rand since this feeds a security-sensitive path.
func cryptoRandIntn(max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}
	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint64(randomBytes) % uint64(max)), nil
}
