package congestion

import (
	"sync"
	"time"

	"github.com/hdds-io/hdds/internal/rtpstypes"
)

// NackCoalesceWindow is the default window within which ACKNACK bitmaps
// for the same reader are merged before triggering one retransmission
// burst (§4.6).
const NackCoalesceWindow = 20 * time.Millisecond

// NackCoalescer merges incoming ACKNACK bitmaps for the same reader
// that arrive within a small window, so a writer issues one
// retransmission burst instead of one per ACKNACK (§4.6).
type NackCoalescer struct {
	window time.Duration
	flush  func(reader rtpstypes.GUID, merged rtpstypes.SequenceNumberSet)

	mu      sync.Mutex
	pending map[rtpstypes.GUID]*pendingNack
}

type pendingNack struct {
	set   rtpstypes.SequenceNumberSet
	timer *time.Timer
}

// NewNackCoalescer builds a coalescer that calls flush once per window
// per reader with the merged bitmap.
func NewNackCoalescer(window time.Duration, flush func(rtpstypes.GUID, rtpstypes.SequenceNumberSet)) *NackCoalescer {
	if window <= 0 {
		window = NackCoalesceWindow
	}
	return &NackCoalescer{window: window, flush: flush, pending: make(map[rtpstypes.GUID]*pendingNack)}
}

// Offer merges set into the reader's pending bitmap, arming a flush
// timer on the first offer within a new window.
func (c *NackCoalescer) Offer(reader rtpstypes.GUID, set rtpstypes.SequenceNumberSet) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[reader]
	if !ok {
		p = &pendingNack{set: set}
		c.pending[reader] = p
		p.timer = time.AfterFunc(c.window, func() { c.flushReader(reader) })
		return
	}
	p.set = mergeSets(p.set, set)
}

func mergeSets(a, b rtpstypes.SequenceNumberSet) rtpstypes.SequenceNumberSet {
	if len(a.Bitmap) == 0 {
		return b
	}
	if len(b.Bitmap) == 0 {
		return a
	}
	base := a.Base
	if b.Base < base {
		base = b.Base
	}
	span := 0
	a.ForEach(func(s rtpstypes.SequenceNumber) {
		if n := int(s-base) + 1; n > span {
			span = n
		}
	})
	b.ForEach(func(s rtpstypes.SequenceNumber) {
		if n := int(s-base) + 1; n > span {
			span = n
		}
	})
	merged := rtpstypes.NewSequenceNumberSet(base, span)
	a.ForEach(func(s rtpstypes.SequenceNumber) { merged.Set(s) })
	b.ForEach(func(s rtpstypes.SequenceNumber) { merged.Set(s) })
	return merged
}

func (c *NackCoalescer) flushReader(reader rtpstypes.GUID) {
	c.mu.Lock()
	p, ok := c.pending[reader]
	if ok {
		delete(c.pending, reader)
	}
	c.mu.Unlock()
	if ok && c.flush != nil {
		c.flush(reader, p.set)
	}
}
