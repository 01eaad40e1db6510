package connection

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff defaults for ConnectToRemote.
const (
	InitialBackoff    = 100 * time.Millisecond
	MaxBackoff        = 5 * time.Second
	BackoffMultiplier = 2.0
	JitterFactor      = 0.25
)

// BackoffConfig shapes the delay between connection attempts. The delay
// before retry n (starting at 0) is Initial*Multiplier^n capped at Max,
// plus up to Jitter of that value at random.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// DefaultBackoffConfig returns the ConnectToRemote defaults.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    InitialBackoff,
		Max:        MaxBackoff,
		Multiplier: BackoffMultiplier,
		Jitter:     JitterFactor,
	}
}

func (c BackoffConfig) normalized() BackoffConfig {
	if c.Initial <= 0 {
		c.Initial = InitialBackoff
	}
	if c.Max <= 0 {
		c.Max = MaxBackoff
	}
	if c.Max < c.Initial {
		c.Max = c.Initial
	}
	if c.Multiplier <= 1 {
		c.Multiplier = BackoffMultiplier
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	return c
}

// Base returns the un-jittered delay before retry n.
func (c BackoffConfig) Base(n int) time.Duration {
	c = c.normalized()
	if n < 0 {
		n = 0
	}
	d := float64(c.Initial) * math.Pow(c.Multiplier, float64(n))
	if d >= float64(c.Max) || math.IsInf(d, 1) {
		return c.Max
	}
	return time.Duration(d)
}

// Delay returns the jittered delay before retry n.
func (c BackoffConfig) Delay(n int) time.Duration {
	base := c.Base(n)
	j := c.normalized().Jitter
	if j == 0 {
		return base
	}
	return base + time.Duration(float64(base)*j*rand.Float64())
}

// BackoffSequence returns the default base delays up to and including
// the cap.
func BackoffSequence() []time.Duration {
	c := DefaultBackoffConfig()
	var seq []time.Duration
	for n := 0; ; n++ {
		d := c.Base(n)
		seq = append(seq, d)
		if d == c.Max {
			return seq
		}
	}
}
