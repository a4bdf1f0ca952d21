// Package qos implements the QoS policy model of §4.9: the
// writer/reader compatibility matrix, deadline/liveliness/lifespan
// timers, ownership arbitration, and content-filtered subscriptions.
package qos

import "time"

// ReliabilityKind selects best-effort or reliable delivery (§4.9).
type ReliabilityKind int

const (
	BestEffort ReliabilityKind = iota
	Reliable
)

// DurabilityKind controls whether late-joining readers receive history
// and whether it survives writer/participant restarts (§4.9).
type DurabilityKind int

const (
	Volatile DurabilityKind = iota
	TransientLocal
	Transient
	Persistent
)

// HistoryKind mirrors internal/historycache.Kind at the QoS-profile
// level (kept distinct so this package has no dependency on the cache
// implementation).
type HistoryKind int

const (
	KeepLast HistoryKind = iota
	KeepAll
)

// OwnershipKind selects whether multiple writers may update the same
// instance concurrently or a single exclusive owner is arbitrated
// (§4.9).
type OwnershipKind int

const (
	Shared OwnershipKind = iota
	Exclusive
)

// LivelinessKind selects how a writer asserts it is still alive (§4.9).
type LivelinessKind int

const (
	Automatic LivelinessKind = iota
	ManualByParticipant
	ManualByTopic
)

// Profile is the full set of QoS policies attached to a writer or
// reader endpoint (§4.9, §6). Zero-value fields are interpreted as the
// most permissive/default setting per policy, matching DDS convention.
type Profile struct {
	Reliability ReliabilityKind
	Durability  DurabilityKind

	History      HistoryKind
	HistoryDepth int // meaningful only when History == KeepLast; <=0 means unbounded

	Deadline time.Duration // 0 means no deadline
	Lifespan time.Duration // 0 means infinite

	Liveliness      LivelinessKind
	LeaseDuration   time.Duration // 0 means infinite

	Ownership         OwnershipKind
	OwnershipStrength int32

	// ContentFilter is an expr-lang boolean expression evaluated
	// against a sample's fields on the subscribing side (§4.9, §6).
	// Empty means no filtering.
	ContentFilter string
}

// DefaultProfile matches the DDS specification's per-policy defaults:
// best-effort, volatile, keep-last(1), shared ownership, automatic
// liveliness, no deadline/lifespan/filter.
var DefaultProfile = Profile{
	Reliability:  BestEffort,
	Durability:   Volatile,
	History:      KeepLast,
	HistoryDepth: 1,
	Liveliness:   Automatic,
	Ownership:    Shared,
}
