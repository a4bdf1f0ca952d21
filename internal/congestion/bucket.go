// Package congestion sits between the history cache and the transport
// layer on egress (§4.6): per-writer token-bucket/AIMD rate control,
// three priority classes with weighted fair queuing, and NACK
// coalescing across readers.
package congestion

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateConfig bounds one writer's AIMD-controlled send rate.
type RateConfig struct {
	InitialBytesPerSec float64
	MinBytesPerSec     float64
	MaxBytesPerSec     float64
	// AdditiveIncrease is added to the effective rate each RTT without loss.
	AdditiveIncrease float64
	// MultiplicativeDecrease scales the effective rate down on loss (default 0.5, §4.6).
	MultiplicativeDecrease float64
}

// DefaultRateConfig matches §4.6's defaults.
var DefaultRateConfig = RateConfig{
	InitialBytesPerSec:     1 << 20,
	MinBytesPerSec:         1 << 14,
	MaxBytesPerSec:         1 << 30,
	AdditiveIncrease:       1 << 16,
	MultiplicativeDecrease: 0.5,
}

// AIMDBucket is a per-writer token bucket whose refill rate is adjusted
// by an additive-increase/multiplicative-decrease controller driven by
// loss/RTT feedback (§4.6).
type AIMDBucket struct {
	cfg RateConfig

	mu      sync.Mutex
	limiter *rate.Limiter
	rtt     time.Duration // EWMA estimate
}

// NewAIMDBucket builds a bucket starting at cfg.InitialBytesPerSec.
func NewAIMDBucket(cfg RateConfig) *AIMDBucket {
	if cfg.MultiplicativeDecrease == 0 {
		cfg.MultiplicativeDecrease = DefaultRateConfig.MultiplicativeDecrease
	}
	return &AIMDBucket{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.InitialBytesPerSec), int(cfg.InitialBytesPerSec)),
	}
}

// AllowSend reports whether frameSize bytes may be sent now, consuming
// tokens if so. A false return means the caller should yield to other
// priority classes (§4.6).
func (b *AIMDBucket) AllowSend(frameSize int) bool {
	return b.limiter.AllowN(time.Now(), frameSize)
}

// OnRTTSample folds a new heartbeat/ACKNACK round-trip measurement into
// the EWMA RTT estimate and, absent loss, additively increases the rate.
func (b *AIMDBucket) OnRTTSample(sample time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rtt == 0 {
		b.rtt = sample
	} else {
		b.rtt = (b.rtt*7 + sample) / 8
	}
	b.setRateLocked(float64(b.limiter.Limit()) + b.cfg.AdditiveIncrease)
}

// OnLoss multiplicatively decreases the effective rate, triggered by an
// unacked timeout or an ECN signal (§4.6).
func (b *AIMDBucket) OnLoss() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setRateLocked(float64(b.limiter.Limit()) * b.cfg.MultiplicativeDecrease)
}

func (b *AIMDBucket) setRateLocked(rps float64) {
	if rps < b.cfg.MinBytesPerSec {
		rps = b.cfg.MinBytesPerSec
	}
	if rps > b.cfg.MaxBytesPerSec {
		rps = b.cfg.MaxBytesPerSec
	}
	b.limiter.SetLimit(rate.Limit(rps))
}

// EffectiveRate returns the current bytes/sec limit.
func (b *AIMDBucket) EffectiveRate() float64 {
	return float64(b.limiter.Limit())
}

// RTT returns the current EWMA round-trip estimate.
func (b *AIMDBucket) RTT() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rtt
}
