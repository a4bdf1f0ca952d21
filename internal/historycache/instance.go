package historycache

import (
	"sync"

	"github.com/hdds-io/hdds/internal/rtpstypes"
)

// Kind is the HISTORY QoS kind (§4.3, §5).
type Kind int

const (
	KeepLast Kind = iota
	KeepAll
)

// Unlimited marks a KEEP_ALL history, or a resource limit with no cap.
const Unlimited = -1

// instance holds the chained chunks of samples for one instance key,
// ordered oldest-to-newest. Push/evict operations are protected by the
// instance's own lock, so concurrent writes to different instances of
// the same topic never contend (grounded on the tree-of-locks level
// structure, generalized from a selector tree to one lock per instance).
type instance struct {
	mu        sync.Mutex
	head, tail *chunk
	count      int
	viewCount  int // samples not yet taken by every reader view
}

func newInstance() *instance {
	c := newChunk()
	return &instance{head: c, tail: c}
}

// push appends a sample, evicting the oldest one first when depth is
// exceeded for KEEP_LAST histories. Returns the evicted sample, if any.
func (in *instance) push(s rtpstypes.Sample, kind Kind, depth int) (evicted rtpstypes.Sample, didEvict bool) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if len(in.tail.samples) == cap(in.tail.samples) {
		nc := newChunk()
		nc.prev = in.tail
		in.tail.next = nc
		in.tail = nc
	}
	in.tail.samples = append(in.tail.samples, s)
	in.count++
	in.viewCount++

	if kind == KeepLast && depth > 0 && in.count > depth {
		evicted, didEvict = in.popOldestLocked()
	}
	return
}

func (in *instance) popOldestLocked() (rtpstypes.Sample, bool) {
	if in.head == nil || len(in.head.samples) == 0 {
		return rtpstypes.Sample{}, false
	}
	s := in.head.samples[0]
	in.head.samples = in.head.samples[1:]
	in.count--
	if len(in.head.samples) == 0 && in.head.next != nil {
		old := in.head
		in.head = in.head.next
		in.head.prev = nil
		releaseChunk(old)
	}
	return s, true
}

// snapshot returns every live sample, oldest-to-newest.
func (in *instance) snapshot() []rtpstypes.Sample {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]rtpstypes.Sample, 0, in.count)
	for c := in.head; c != nil; c = c.next {
		out = append(out, c.samples...)
	}
	return out
}

// take behaves like snapshot but additionally drains every chunk,
// returning the instance to empty (READ_SAMPLE_STATE -> NOT_READ
// transition modeled at the reader-cache level, not here).
func (in *instance) take() []rtpstypes.Sample {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]rtpstypes.Sample, 0, in.count)
	for c := in.head; c != nil; {
		out = append(out, c.samples...)
		next := c.next
		releaseChunk(c)
		c = next
	}
	fresh := newChunk()
	in.head, in.tail = fresh, fresh
	in.count = 0
	in.viewCount = 0
	return out
}

func (in *instance) size() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.count
}
