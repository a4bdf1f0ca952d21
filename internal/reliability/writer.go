package reliability

import (
	"math/rand"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/hdds-io/hdds/internal/rtpstypes"
)

// WriterHooks are the side effects a WriterReliability drives; the
// caller supplies these rather than WriterReliability talking to the
// transport or history cache directly, keeping the state machine
// testable in isolation.
type WriterHooks struct {
	// SendHeartbeat announces (first, last) available sequence numbers to
	// the given reader.
	SendHeartbeat func(reader rtpstypes.GUID, first, last rtpstypes.SequenceNumber, count int32, final bool)
	// Retransmit resends the samples at the given sequence numbers to the
	// given reader.
	Retransmit func(reader rtpstypes.GUID, seqs []rtpstypes.SequenceNumber)
	// SendGap reports that the given sequence numbers will never be
	// delivered (they were evicted before the reader could NACK them).
	SendGap func(reader rtpstypes.GUID, start rtpstypes.SequenceNumber, missing rtpstypes.SequenceNumberSet)
	// HasSample reports whether seq is still available in the writer's
	// history cache; if false, Retransmit is skipped in favor of SendGap.
	HasSample func(seq rtpstypes.SequenceNumber) bool
}

type nackState struct {
	timer   *time.Timer
	delay   time.Duration
	retries int
}

type readerRelation struct {
	firstAvailable rtpstypes.SequenceNumber
	highestAcked   rtpstypes.SequenceNumber
	nacks          map[rtpstypes.SequenceNumber]*nackState
	dropped        bool
}

// WriterReliability drives one reliable writer's matched-reader
// relationships: periodic heartbeats, ACKNACK-triggered retransmission
// with exponential backoff, and GAP issuance for evicted samples (§4.4).
type WriterReliability struct {
	cfg Config

	mu       sync.Mutex
	readers  map[rtpstypes.GUID]*readerRelation
	lastSeq  rtpstypes.SequenceNumber
	hbCount  int32

	hooks     WriterHooks
	scheduler gocron.Scheduler
	jobs      map[rtpstypes.GUID]gocron.Job
}

// NewWriterReliability builds a WriterReliability bound to the given
// scheduler (owned by the participant's runtime, never a package
// singleton — §9) and hooks.
func NewWriterReliability(cfg Config, scheduler gocron.Scheduler, hooks WriterHooks) *WriterReliability {
	return &WriterReliability{
		cfg:       cfg.withDefaults(),
		readers:   make(map[rtpstypes.GUID]*readerRelation),
		hooks:     hooks,
		scheduler: scheduler,
		jobs:      make(map[rtpstypes.GUID]gocron.Job),
	}
}

// OnWrite records that a new sample was appended to the writer's
// history cache at seq, the highest sequence number emitted so far.
func (w *WriterReliability) OnWrite(seq rtpstypes.SequenceNumber) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if seq > w.lastSeq {
		w.lastSeq = seq
	}
}

// MatchReader begins tracking a newly matched reliable reader and starts
// its periodic heartbeat job.
func (w *WriterReliability) MatchReader(reader rtpstypes.GUID, firstAvailable rtpstypes.SequenceNumber) error {
	w.mu.Lock()
	w.readers[reader] = &readerRelation{
		firstAvailable: firstAvailable,
		nacks:          make(map[rtpstypes.SequenceNumber]*nackState),
	}
	w.mu.Unlock()

	if w.scheduler == nil {
		return nil
	}
	jitter := time.Duration(0)
	if w.cfg.HeartbeatJitter > 0 {
		jitter = time.Duration(rand.Int63n(int64(w.cfg.HeartbeatJitter)))
	}
	job, err := w.scheduler.NewJob(
		gocron.DurationJob(w.cfg.HeartbeatPeriod+jitter),
		gocron.NewTask(func() { w.sendHeartbeat(reader) }),
	)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.jobs[reader] = job
	w.mu.Unlock()
	return nil
}

// UnmatchReader stops tracking a reader and cancels its heartbeat job.
func (w *WriterReliability) UnmatchReader(reader rtpstypes.GUID) {
	w.mu.Lock()
	rel := w.readers[reader]
	delete(w.readers, reader)
	job := w.jobs[reader]
	delete(w.jobs, reader)
	if rel != nil {
		for _, n := range rel.nacks {
			if n.timer != nil {
				n.timer.Stop()
			}
		}
	}
	w.mu.Unlock()

	if job != nil && w.scheduler != nil {
		_ = w.scheduler.RemoveJob(job.ID())
	}
}

func (w *WriterReliability) sendHeartbeat(reader rtpstypes.GUID) {
	w.mu.Lock()
	_, ok := w.readers[reader]
	if !ok {
		w.mu.Unlock()
		return
	}
	first := w.firstAvailableLocked(reader)
	last := w.lastSeq
	w.hbCount++
	count := w.hbCount
	w.mu.Unlock()

	if w.hooks.SendHeartbeat != nil {
		w.hooks.SendHeartbeat(reader, first, last, count, true)
	}
}

func (w *WriterReliability) firstAvailableLocked(reader rtpstypes.GUID) rtpstypes.SequenceNumber {
	if rel, ok := w.readers[reader]; ok {
		return rel.firstAvailable
	}
	return 0
}

// OnAckNack processes a reader's ACKNACK: everything below the set's
// base is acknowledged, and any bit set within the bitmap is scheduled
// for retransmission (or GAP, if the sample was already evicted),
// per-sequence, with exponential backoff on repeat NACKs (§4.4).
func (w *WriterReliability) OnAckNack(reader rtpstypes.GUID, set rtpstypes.SequenceNumberSet) {
	w.mu.Lock()
	rel, ok := w.readers[reader]
	if !ok || rel.dropped {
		w.mu.Unlock()
		return
	}
	if set.Base > 0 {
		rel.highestAcked = set.Base - 1
	}
	var toHandle []rtpstypes.SequenceNumber
	set.ForEach(func(seq rtpstypes.SequenceNumber) { toHandle = append(toHandle, seq) })
	w.mu.Unlock()

	if len(toHandle) == 0 {
		return
	}

	missing := rtpstypes.NewSequenceNumberSet(toHandle[0], len(toHandle))
	var retransmit []rtpstypes.SequenceNumber
	for _, seq := range toHandle {
		if w.hooks.HasSample != nil && !w.hooks.HasSample(seq) {
			missing.Set(seq)
			continue
		}
		if w.scheduleNack(reader, seq) {
			retransmit = append(retransmit, seq)
		}
	}
	if !missing.Empty() && w.hooks.SendGap != nil {
		w.hooks.SendGap(reader, toHandle[0], missing)
	}
	if len(retransmit) > 0 && w.hooks.Retransmit != nil {
		w.hooks.Retransmit(reader, retransmit)
	}
}

// scheduleNack arms (or re-arms, with doubled delay) a backoff timer for
// one sequence number, returning true if retransmission should happen
// immediately (first NACK for this sequence).
func (w *WriterReliability) scheduleNack(reader rtpstypes.GUID, seq rtpstypes.SequenceNumber) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	rel, ok := w.readers[reader]
	if !ok {
		return false
	}
	n, exists := rel.nacks[seq]
	if !exists {
		rel.nacks[seq] = &nackState{delay: w.cfg.NackBackoffInitial}
		return true
	}
	n.retries++
	if n.retries > w.cfg.MaxNackRetries {
		rel.dropped = true
		delete(rel.nacks, seq)
		return false
	}
	n.delay *= 2
	if n.delay > w.cfg.NackBackoffCap {
		n.delay = w.cfg.NackBackoffCap
	}
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(n.delay, func() {
		if w.hooks.Retransmit != nil {
			w.hooks.Retransmit(reader, []rtpstypes.SequenceNumber{seq})
		}
	})
	return false
}

// IsDropped reports whether the relationship with reader was dropped
// after exceeding MaxNackRetries (§4.4).
func (w *WriterReliability) IsDropped(reader rtpstypes.GUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	rel, ok := w.readers[reader]
	return ok && rel.dropped
}
