// Package reliability implements the writer- and reader-side reliable
// delivery state machines (§4.4): heartbeats, ACKNACK processing, GAP
// issuance, out-of-order buffering, and NACK backoff.
package reliability

import "time"

// Config bounds the timing behavior of one reliability relationship set.
// Zero-value fields are replaced by DefaultConfig's values by
// NewWriterReliability and NewReaderReliability.
type Config struct {
	// HeartbeatPeriod is the base interval between periodic heartbeats; a
	// random jitter of up to HeartbeatJitter is drawn once per matched
	// reader and added to that reader's heartbeat period, to avoid
	// synchronized bursts across writers (§4.4).
	HeartbeatPeriod time.Duration
	HeartbeatJitter time.Duration

	// AckNackCoalesceDelay batches reader-side bitmap updates instead of
	// replying to every received DATA/HEARTBEAT immediately (§4.4).
	AckNackCoalesceDelay time.Duration

	// NackBackoffInitial/Cap bound the writer's exponential backoff on
	// repeated NACKs for the same sequence number (§4.4).
	NackBackoffInitial time.Duration
	NackBackoffCap     time.Duration

	// MaxNackRetries drops the reader relationship once exceeded for any
	// single sequence number.
	MaxNackRetries int
}

// DefaultConfig matches the QoS defaults named in §4.4.
var DefaultConfig = Config{
	HeartbeatPeriod:      100 * time.Millisecond,
	HeartbeatJitter:      20 * time.Millisecond,
	AckNackCoalesceDelay: 50 * time.Millisecond,
	NackBackoffInitial:   50 * time.Millisecond,
	NackBackoffCap:       5 * time.Second,
	MaxNackRetries:       8,
}

func (c Config) withDefaults() Config {
	d := DefaultConfig
	if c.HeartbeatPeriod > 0 {
		d.HeartbeatPeriod = c.HeartbeatPeriod
	}
	if c.HeartbeatJitter > 0 {
		d.HeartbeatJitter = c.HeartbeatJitter
	}
	if c.AckNackCoalesceDelay > 0 {
		d.AckNackCoalesceDelay = c.AckNackCoalesceDelay
	}
	if c.NackBackoffInitial > 0 {
		d.NackBackoffInitial = c.NackBackoffInitial
	}
	if c.NackBackoffCap > 0 {
		d.NackBackoffCap = c.NackBackoffCap
	}
	if c.MaxNackRetries > 0 {
		d.MaxNackRetries = c.MaxNackRetries
	}
	return d
}
