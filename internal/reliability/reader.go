package reliability

import (
	"sort"
	"sync"
	"time"

	"github.com/hdds-io/hdds/internal/rtpstypes"
)

// ReaderHooks are the side effects a ReaderReliability drives.
type ReaderHooks struct {
	// SendAckNack emits an ACKNACK for the given writer with the current
	// missing-sequence bitmap.
	SendAckNack func(writer rtpstypes.GUID, state rtpstypes.SequenceNumberSet, count int32)
	// Deliver is invoked once for every sample (in increasing sequence
	// order) that becomes contiguous and is therefore ready for the
	// history cache / application.
	Deliver func(writer rtpstypes.GUID, seq rtpstypes.SequenceNumber)
}

type writerRelation struct {
	highestContiguous rtpstypes.SequenceNumber // next expected - 1
	highestReceived   rtpstypes.SequenceNumber
	lastAvailable     rtpstypes.SequenceNumber
	pending           map[rtpstypes.SequenceNumber]bool // received but not yet delivered (out-of-order)
	irrecoverable     map[rtpstypes.SequenceNumber]bool
	ackCount          int32
	coalesceTimer     *time.Timer
}

// ReaderReliability drives one reliable reader's matched-writer
// relationships: gap tracking, out-of-order buffering, and coalesced
// ACKNACK emission (§4.4).
type ReaderReliability struct {
	cfg Config

	mu      sync.Mutex
	writers map[rtpstypes.GUID]*writerRelation
	hooks   ReaderHooks
}

// NewReaderReliability builds a ReaderReliability.
func NewReaderReliability(cfg Config, hooks ReaderHooks) *ReaderReliability {
	return &ReaderReliability{
		cfg:     cfg.withDefaults(),
		writers: make(map[rtpstypes.GUID]*writerRelation),
		hooks:   hooks,
	}
}

// MatchWriter begins tracking a newly matched reliable writer.
func (r *ReaderReliability) MatchWriter(writer rtpstypes.GUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writers[writer] = &writerRelation{
		pending:       make(map[rtpstypes.SequenceNumber]bool),
		irrecoverable: make(map[rtpstypes.SequenceNumber]bool),
	}
}

// UnmatchWriter stops tracking a writer and cancels its coalescing timer.
func (r *ReaderReliability) UnmatchWriter(writer rtpstypes.GUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rel, ok := r.writers[writer]; ok && rel.coalesceTimer != nil {
		rel.coalesceTimer.Stop()
	}
	delete(r.writers, writer)
}

// OnData records receipt of a sample at seq from writer, delivering it
// (and any now-contiguous successors held in the out-of-order buffer)
// in order.
func (r *ReaderReliability) OnData(writer rtpstypes.GUID, seq rtpstypes.SequenceNumber) {
	r.mu.Lock()
	rel, ok := r.writers[writer]
	if !ok {
		r.mu.Unlock()
		return
	}
	if seq > rel.highestReceived {
		rel.highestReceived = seq
	}
	if seq <= rel.highestContiguous || rel.irrecoverable[seq] {
		r.mu.Unlock()
		return // duplicate
	}

	var toDeliver []rtpstypes.SequenceNumber
	if seq == rel.highestContiguous+1 {
		rel.highestContiguous = seq
		toDeliver = append(toDeliver, seq)
		for {
			next := rel.highestContiguous + 1
			if rel.pending[next] {
				delete(rel.pending, next)
				rel.highestContiguous = next
				toDeliver = append(toDeliver, next)
				continue
			}
			if rel.irrecoverable[next] {
				rel.highestContiguous = next
				delete(rel.irrecoverable, next)
				continue
			}
			break
		}
	} else {
		rel.pending[seq] = true
	}
	r.mu.Unlock()

	if r.hooks.Deliver != nil {
		for _, s := range toDeliver {
			r.hooks.Deliver(writer, s)
		}
	}
	r.scheduleAckNack(writer)
}

// OnHeartbeat updates the writer's advertised range. If the writer's
// first_available has advanced past what this reader has contiguously
// received, the gap is unrecoverable (the writer evicted those samples)
// and highest_contiguous is forced forward (§4.4).
func (r *ReaderReliability) OnHeartbeat(writer rtpstypes.GUID, first, last rtpstypes.SequenceNumber, final bool) {
	r.mu.Lock()
	rel, ok := r.writers[writer]
	if !ok {
		r.mu.Unlock()
		return
	}
	rel.lastAvailable = last
	if first > rel.highestContiguous+1 {
		for s := rel.highestContiguous + 1; s < first; s++ {
			delete(rel.pending, s)
		}
		rel.highestContiguous = first - 1
	}
	r.mu.Unlock()

	if final {
		r.scheduleAckNack(writer)
	}
}

// OnGap marks [start, start+bitmap) minus already-received sequences as
// unrecoverable, advancing highest_contiguous through any now-resolved
// prefix (§4.4).
func (r *ReaderReliability) OnGap(writer rtpstypes.GUID, start rtpstypes.SequenceNumber, set rtpstypes.SequenceNumberSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rel, ok := r.writers[writer]
	if !ok {
		return
	}
	mark := func(seq rtpstypes.SequenceNumber) {
		if !rel.pending[seq] {
			rel.irrecoverable[seq] = true
		}
	}
	for s := start; s < set.Base; s++ {
		mark(s)
	}
	set.ForEach(mark)

	for {
		next := rel.highestContiguous + 1
		if rel.pending[next] {
			delete(rel.pending, next)
			rel.highestContiguous = next
			continue
		}
		if rel.irrecoverable[next] {
			delete(rel.irrecoverable, next)
			rel.highestContiguous = next
			continue
		}
		break
	}
}

// MissingSet builds the current sparse bitmap of sequence numbers this
// reader still needs from writer, for use in an ACKNACK (§4.4).
func (r *ReaderReliability) MissingSet(writer rtpstypes.GUID) rtpstypes.SequenceNumberSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	rel, ok := r.writers[writer]
	if !ok {
		return rtpstypes.SequenceNumberSet{}
	}
	base := rel.highestContiguous + 1
	span := int(rel.highestReceived-base) + 1
	if span <= 0 {
		return rtpstypes.SequenceNumberSet{Base: base}
	}
	set := rtpstypes.NewSequenceNumberSet(base, span)
	var missing []rtpstypes.SequenceNumber
	for s := base; s <= rel.highestReceived; s++ {
		if !rel.pending[s] && !rel.irrecoverable[s] {
			missing = append(missing, s)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	for _, s := range missing {
		set.Set(s)
	}
	return set
}

func (r *ReaderReliability) scheduleAckNack(writer rtpstypes.GUID) {
	r.mu.Lock()
	rel, ok := r.writers[writer]
	if !ok {
		r.mu.Unlock()
		return
	}
	if rel.coalesceTimer != nil {
		r.mu.Unlock()
		return // already scheduled within the coalescing window
	}
	rel.coalesceTimer = time.AfterFunc(r.cfg.AckNackCoalesceDelay, func() {
		r.mu.Lock()
		rel, ok := r.writers[writer]
		if !ok {
			r.mu.Unlock()
			return
		}
		rel.coalesceTimer = nil
		rel.ackCount++
		count := rel.ackCount
		r.mu.Unlock()

		if r.hooks.SendAckNack != nil {
			r.hooks.SendAckNack(writer, r.MissingSet(writer), count)
		}
	})
	r.mu.Unlock()
}
