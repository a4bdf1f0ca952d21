package qos

import (
	"sync"

	"github.com/hdds-io/hdds/internal/rtpstypes"
)

// Arbitrator tracks the exclusive owner of each instance of a topic
// under EXCLUSIVE ownership (§4.9): the writer with the highest
// OwnershipStrength owns the instance; ties break toward the writer
// with the numerically larger GUID, matching the DDS specification's
// deterministic tie-break rule. It is owned per-topic by a Reader, not
// a package singleton (§9).
type Arbitrator struct {
	mu      sync.Mutex
	owners  map[rtpstypes.InstanceKey]candidate
}

type candidate struct {
	writer   rtpstypes.GUID
	strength int32
}

// NewArbitrator builds an empty per-instance ownership tracker.
func NewArbitrator() *Arbitrator {
	return &Arbitrator{owners: make(map[rtpstypes.InstanceKey]candidate)}
}

// Accepts reports whether a sample from writer at the given strength
// should be delivered for instance under EXCLUSIVE ownership, updating
// the tracked owner if writer takes or retains ownership.
func (a *Arbitrator) Accepts(instance rtpstypes.InstanceKey, writer rtpstypes.GUID, strength int32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	cur, ok := a.owners[instance]
	if !ok || beats(writer, strength, cur.writer, cur.strength) {
		a.owners[instance] = candidate{writer: writer, strength: strength}
		return true
	}
	return cur.writer == writer
}

// RemoveWriter drops writer as a candidate owner of every instance,
// called when a writer is unmatched or its liveliness lease expires.
// Any instance it owned becomes ownerless again (next writer to update
// it wins regardless of strength).
func (a *Arbitrator) RemoveWriter(writer rtpstypes.GUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for k, c := range a.owners {
		if c.writer == writer {
			delete(a.owners, k)
		}
	}
}

// Owner reports the current owner of instance, if any.
func (a *Arbitrator) Owner(instance rtpstypes.InstanceKey) (rtpstypes.GUID, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.owners[instance]
	return c.writer, ok
}

func beats(candWriter rtpstypes.GUID, candStrength int32, curWriter rtpstypes.GUID, curStrength int32) bool {
	if candStrength != curStrength {
		return candStrength > curStrength
	}
	candBytes, curBytes := candWriter.Bytes(), curWriter.Bytes()
	for i := range candBytes {
		if candBytes[i] != curBytes[i] {
			return candBytes[i] > curBytes[i]
		}
	}
	return false
}
