package congestion

import (
	"sync"

	"github.com/hdds-io/hdds/internal/rtpstypes"
)

// Class is one of the three egress priority classes (§4.6).
type Class int

const (
	// ClassCritical carries discovery traffic, heartbeats, GAPs, ACKNACKs.
	ClassCritical Class = iota
	// ClassReliable carries reliable user data.
	ClassReliable
	// ClassBestEffort carries best-effort data, coalesced per instance.
	ClassBestEffort
)

// Frame is one outbound unit of work.
type Frame struct {
	Class    Class
	WriterID rtpstypes.GUID
	Instance rtpstypes.InstanceKey // only meaningful for ClassBestEffort coalescing
	Payload  []byte
	Dests    []rtpstypes.Locator
}

// QueueConfig controls the weighted-fair-queuing weights between the
// reliable and best-effort classes (§4.6).
type QueueConfig struct {
	P0Reserve float64 // fraction for ClassCritical, e.g. 0.1; not read by Pop, which always serves critical frames first
	P1Weight  int
	P2Weight  int
}

// DefaultQueueConfig splits non-critical slots 3:1 between reliable and
// best-effort. Its P0Reserve of 10% is not consulted by Pop.
var DefaultQueueConfig = QueueConfig{P0Reserve: 0.1, P1Weight: 3, P2Weight: 1}

// Queue implements the three-class egress scheduler: critical traffic
// is served with strict priority over the other classes, reliable and
// best-effort traffic share the remainder by weighted fair queuing, and
// best-effort frames
// for the same instance are coalesced ("last value wins") within a
// scheduling window (§4.6).
type Queue struct {
	cfg QueueConfig

	mu        sync.Mutex
	critical  []Frame
	reliable  []Frame
	bestEffort map[rtpstypes.InstanceKey]Frame
	beOrder    []rtpstypes.InstanceKey

	// round-robin credit counters for weighted fair queuing between P1/P2.
	p1Credit, p2Credit int
}

// NewQueue builds an empty Queue.
func NewQueue(cfg QueueConfig) *Queue {
	if cfg.P1Weight == 0 {
		cfg = DefaultQueueConfig
	}
	return &Queue{cfg: cfg, bestEffort: make(map[rtpstypes.InstanceKey]Frame)}
}

// Push enqueues a frame for later dispatch.
func (q *Queue) Push(f Frame) {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch f.Class {
	case ClassCritical:
		q.critical = append(q.critical, f)
	case ClassReliable:
		q.reliable = append(q.reliable, f)
	default:
		if _, exists := q.bestEffort[f.Instance]; !exists {
			q.beOrder = append(q.beOrder, f.Instance)
		}
		q.bestEffort[f.Instance] = f // coalesce: last value wins
	}
}

// Pop selects the next frame to send: any pending critical frame first,
// otherwise weighted fair queuing between the other two classes.
// Returns false if the queue is empty.
func (q *Queue) Pop() (Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.critical) > 0 {
		f := q.critical[0]
		q.critical = q.critical[1:]
		return f, true
	}

	hasReliable := len(q.reliable) > 0
	hasBestEffort := len(q.beOrder) > 0
	if !hasReliable && !hasBestEffort {
		return Frame{}, false
	}
	if hasReliable && (!hasBestEffort || q.p1Credit <= q.p2Credit*q.cfg.P1Weight/max1(q.cfg.P2Weight)) {
		f := q.reliable[0]
		q.reliable = q.reliable[1:]
		q.p1Credit++
		return f, true
	}
	key := q.beOrder[0]
	q.beOrder = q.beOrder[1:]
	f := q.bestEffort[key]
	delete(q.bestEffort, key)
	q.p2Credit++
	return f, true
}

func max1(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

// Len reports the total number of pending frames across all classes.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.critical) + len(q.reliable) + len(q.beOrder)
}
