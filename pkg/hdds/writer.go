package hdds

import (
	"sync"
	"time"

	"github.com/hdds-io/hdds/internal/config"
	"github.com/hdds-io/hdds/internal/congestion"
	"github.com/hdds-io/hdds/internal/discovery"
	"github.com/hdds-io/hdds/internal/hddserr"
	"github.com/hdds-io/hdds/internal/historycache"
	"github.com/hdds-io/hdds/internal/qos"
	"github.com/hdds-io/hdds/internal/reliability"
	"github.com/hdds-io/hdds/internal/rtps"
	"github.com/hdds-io/hdds/internal/rtpstypes"
)

// Writer implements the §6 Writer operations for one topic.
type Writer struct {
	participant *Participant
	guid        rtpstypes.GUID
	topic       Topic
	profile     qos.Profile

	cache       *historycache.Cache
	reliability *reliability.WriterReliability // nil when best-effort
	bucket      *congestion.AIMDBucket
	queue       *congestion.Queue
	deadline    *qos.DeadlineMonitor

	mu      sync.Mutex
	seq     rtpstypes.SequenceCounter
	matched map[rtpstypes.GUID]discovery.EndpointRecord
}

// CreateWriter creates a writer for topic on participant with the named
// QoS profile (§6 Writer.create). An empty profileName uses the
// participant's default profile.
func (p *Participant) CreateWriter(topic Topic, profileName string) (WriterHandle, error) {
	const op = "hdds.Participant.CreateWriter"
	if err := p.checkOpen(op); err != nil {
		return WriterHandle{}, err
	}

	profile := p.profile
	if profileName != "" {
		resolved, err := config.ResolveProfile(profileName)
		if err != nil {
			return WriterHandle{}, hddserr.Wrap(op, hddserr.InvalidArgument, err, "resolve profile %q", profileName)
		}
		profile = resolved
	}

	entity := p.entityIDs.NextWriter(true)
	guid := rtpstypes.GUID{Prefix: p.prefix, Entity: entity}

	limits := historycache.ResourceLimits{
		MaxSamples:            4096,
		MaxInstances:          1024,
		MaxSamplesPerInstance: profile.HistoryDepth,
	}
	kind := historycache.KeepLast
	if profile.History == qos.KeepAll {
		kind = historycache.KeepAll
	}

	w := &Writer{
		participant: p,
		guid:        guid,
		topic:       topic,
		profile:     profile,
		cache:       historycache.New(kind, maxInt(profile.HistoryDepth, 1), limits),
		bucket:      congestion.NewAIMDBucket(congestion.DefaultRateConfig),
		queue:       congestion.NewQueue(congestion.DefaultQueueConfig),
		matched:     make(map[rtpstypes.GUID]discovery.EndpointRecord),
	}

	if profile.Reliability == qos.Reliable {
		w.reliability = reliability.NewWriterReliability(reliability.DefaultConfig, p.runtime.Scheduler(), reliability.WriterHooks{
			SendHeartbeat: w.sendHeartbeat,
			Retransmit:    w.retransmit,
			SendGap:       w.sendGap,
			HasSample:     w.hasSample,
		})
	}
	if profile.Deadline > 0 {
		w.deadline = qos.NewDeadlineMonitor(p.runtime.Scheduler(), profile.Deadline, w.onDeadlineMissed)
		_ = w.deadline.Start()
	}

	p.mu.Lock()
	p.writers[entity] = w
	p.mu.Unlock()

	rec := discovery.EndpointRecord{
		GUID:      guid,
		Kind:      discovery.EndpointWriter,
		TopicName: topic.Name,
		TypeName:  topic.TypeName,
		QoS:       profile,
	}
	p.sedp.Announce(rec)
	p.graph.AddEndpoint(rec)

	return WriterHandle{guid: guid}, nil
}

func (p *Participant) writerFor(h WriterHandle) (*Writer, error) {
	const op = "hdds.Writer"
	p.mu.RLock()
	defer p.mu.RUnlock()
	w, ok := p.writers[h.guid.Entity]
	if !ok || w.guid != h.guid {
		return nil, hddserr.New(op, hddserr.NotFound, "no such writer handle")
	}
	return w, nil
}

// Write publishes payload as a new sample of instance (§6 Writer.write).
// payload is already serialized by the caller (a language binding or
// internal/cdr); the Core API treats it as an opaque blob.
func (p *Participant) Write(h WriterHandle, instance rtpstypes.InstanceKey, payload []byte) error {
	const op = "hdds.Participant.Write"
	w, err := p.writerFor(h)
	if err != nil {
		return err
	}

	w.mu.Lock()
	seq, err := w.seq.Next()
	w.mu.Unlock()
	if err != nil {
		return hddserr.Wrap(op, hddserr.Fatal, err, "allocate sequence number")
	}

	sample := rtpstypes.Sample{
		WriterGUID:        w.guid,
		SequenceNumber:    seq,
		SourceTimestamp:   time.Now(),
		ReceptionTime:     time.Now(),
		Payload:           payload,
		Instance:          instance,
		OwnershipStrength: w.profile.OwnershipStrength,
	}
	if err := w.cache.Write(sample); err != nil {
		p.metrics.SampleRejected(w.guid.String(), w.topic.Name)
		return hddserr.Wrap(op, hddserr.ResourceLimits, err, "writer history cache full")
	}

	if w.reliability != nil {
		w.reliability.OnWrite(seq)
	}
	if w.deadline != nil {
		w.deadline.Touch(instance, sample.SourceTimestamp)
	}

	w.broadcastData(seq, payload, false)
	return nil
}

// Dispose marks instance as disposed (§6 uses Writer.dispose; §3 "Sample"
// StatusInfo), delivering a disposed sample with no payload so matched
// readers observe the transition.
func (p *Participant) Dispose(h WriterHandle, instance rtpstypes.InstanceKey) error {
	const op = "hdds.Participant.Dispose"
	w, err := p.writerFor(h)
	if err != nil {
		return err
	}
	w.cache.DisposeInstance(instance)

	w.mu.Lock()
	seq, err := w.seq.Next()
	w.mu.Unlock()
	if err != nil {
		return hddserr.Wrap(op, hddserr.Fatal, err, "allocate sequence number")
	}
	if w.reliability != nil {
		w.reliability.OnWrite(seq)
	}
	w.broadcastData(seq, nil, true)
	return nil
}

// DestroyWriter releases a writer and unmatches every reader it was
// paired with (§4 lifecycle "destroyed individually").
func (p *Participant) DestroyWriter(h WriterHandle) error {
	w, err := p.writerFor(h)
	if err != nil {
		return err
	}
	if w.deadline != nil {
		w.deadline.Stop()
	}
	p.sedp.Dispose(w.guid)
	p.graph.RemoveEndpoint(w.guid)

	p.mu.Lock()
	delete(p.writers, h.guid.Entity)
	p.mu.Unlock()
	return nil
}

func (w *Writer) hasPendingReliableWrites() bool {
	if w.reliability == nil {
		return false
	}
	return w.cache.InstanceCount() > 0
}

// matchReader runs when a remote reader on the same topic is discovered
// (§4.9 matching). Incompatible QoS leaves the reader unmatched and
// reports the transition through metrics, exactly as §7 requires.
func (w *Writer) matchReader(remote discovery.EndpointRecord) {
	remoteProfile, _ := remote.QoS.(qos.Profile)
	if ok, _ := qos.Compatible(w.profile, remoteProfile); !ok {
		w.participant.metrics.IncompatibleQoS(w.guid.String(), w.topic.Name)
		return
	}

	w.mu.Lock()
	w.matched[remote.GUID] = remote
	count := len(w.matched)
	w.mu.Unlock()
	w.participant.metrics.SetMatched(w.guid.String(), w.topic.Name, "subscriber", count)

	if w.reliability != nil {
		first := w.firstAvailableSeq()
		if err := w.reliability.MatchReader(remote.GUID, first); err != nil {
			return
		}
	}
}

func (w *Writer) firstAvailableSeq() rtpstypes.SequenceNumber {
	all := w.cache.SnapshotAll()
	if len(all) == 0 {
		return w.seq.Last() + 1
	}
	first := all[0].SequenceNumber
	for _, s := range all {
		if s.SequenceNumber < first {
			first = s.SequenceNumber
		}
	}
	return first
}

func (w *Writer) broadcastData(seq rtpstypes.SequenceNumber, payload []byte, keyOnly bool) {
	w.mu.Lock()
	dests := make([]rtpstypes.Locator, 0, len(w.matched))
	for _, rec := range w.matched {
		dests = append(dests, rec.Locators...)
	}
	w.mu.Unlock()
	if len(dests) == 0 {
		return
	}

	class := congestion.ClassBestEffort
	if w.reliability != nil {
		class = congestion.ClassReliable
	}
	w.queue.Push(congestion.Frame{
		Class:    class,
		WriterID: w.guid,
		Instance: rtpstypes.InstanceKey{},
		Payload:  w.encodeData(seq, payload, keyOnly, dests),
		Dests:    dests,
	})
	w.flushQueue()
}

// encodeData frames one DATA submessage addressed to ENTITYID_UNKNOWN (the
// zero EntityId); the reader side resolves the true reader id from its
// own matched-writer bookkeeping rather than this module modeling
// per-destination reader entity ids, which keeps one frame reusable
// across every matched reader on the topic.
func (w *Writer) encodeData(seq rtpstypes.SequenceNumber, payload []byte, keyOnly bool, dests []rtpstypes.Locator) []byte {
	sub := rtps.BuildData(rtpstypes.EntityId{}, w.guid.Entity, seq, nil, payload, keyOnly, false)
	return rtps.BuildMessage(w.guid.Prefix, [][]byte{sub})
}

// flushQueue drains frames the AIMD bucket currently has tokens for,
// sending each to every destination locator; a frame the bucket denies
// is requeued and retried shortly via the runtime timer wheel (§4.6).
func (w *Writer) flushQueue() {
	for {
		f, ok := w.queue.Pop()
		if !ok {
			return
		}
		if !w.bucket.AllowSend(len(f.Payload)) {
			w.queue.Push(f)
			w.participant.runtime.TimerWheel().Schedule(5*time.Millisecond, w.flushQueue)
			return
		}
		for _, dst := range f.Dests {
			_ = w.participant.transport.Send(dst, f.Payload)
		}
	}
}

func (w *Writer) sendHeartbeat(reader rtpstypes.GUID, first, last rtpstypes.SequenceNumber, count int32, final bool) {
	sub := rtps.BuildHeartbeat(rtpstypes.EntityId{}, w.guid.Entity, first, last, count, final, false)
	datagram := rtps.BuildMessage(w.guid.Prefix, [][]byte{sub})
	w.sendToReader(reader, datagram)
}

func (w *Writer) sendGap(reader rtpstypes.GUID, start rtpstypes.SequenceNumber, missing rtpstypes.SequenceNumberSet) {
	sub := rtps.BuildGap(rtpstypes.EntityId{}, w.guid.Entity, start, missing, false)
	datagram := rtps.BuildMessage(w.guid.Prefix, [][]byte{sub})
	w.sendToReader(reader, datagram)
}

func (w *Writer) retransmit(reader rtpstypes.GUID, seqs []rtpstypes.SequenceNumber) {
	for _, seq := range seqs {
		for _, s := range w.cache.SnapshotAll() {
			if s.SequenceNumber == seq {
				w.sendToReader(reader, rtps.BuildMessage(w.guid.Prefix, [][]byte{
					rtps.BuildData(rtpstypes.EntityId{}, w.guid.Entity, seq, nil, s.Payload, s.Status.KeyOnly(), false),
				}))
				break
			}
		}
	}
}

func (w *Writer) hasSample(seq rtpstypes.SequenceNumber) bool {
	for _, s := range w.cache.SnapshotAll() {
		if s.SequenceNumber == seq {
			return true
		}
	}
	return false
}

func (w *Writer) sendToReader(reader rtpstypes.GUID, datagram []byte) {
	w.mu.Lock()
	rec, ok := w.matched[reader]
	w.mu.Unlock()
	if !ok {
		return
	}
	for _, loc := range rec.Locators {
		_ = w.participant.transport.Send(loc, datagram)
	}
}

func (w *Writer) onAckNack(reader rtpstypes.GUID, ev rtps.Event) {
	if w.reliability == nil {
		return
	}
	w.reliability.OnAckNack(reader, ev.ReaderSNState)
}

func (w *Writer) onDeadlineMissed(instance rtpstypes.InstanceKey) {
	w.participant.metrics.DeadlineMissed(w.guid.String(), w.topic.Name)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
