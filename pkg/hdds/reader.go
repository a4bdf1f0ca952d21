package hdds

import (
	"sync"
	"time"

	"github.com/hdds-io/hdds/internal/config"
	"github.com/hdds-io/hdds/internal/discovery"
	"github.com/hdds-io/hdds/internal/hddserr"
	"github.com/hdds-io/hdds/internal/historycache"
	"github.com/hdds-io/hdds/internal/qos"
	"github.com/hdds-io/hdds/internal/reliability"
	"github.com/hdds-io/hdds/internal/rtps"
	"github.com/hdds-io/hdds/internal/rtpstypes"
	"github.com/hdds-io/hdds/internal/waitset"
)

// Reader implements the §6 Reader operations for one topic.
type Reader struct {
	participant *Participant
	guid        rtpstypes.GUID
	topic       Topic
	profile     qos.Profile

	cache       *historycache.Cache
	reliability *reliability.ReaderReliability // nil when best-effort
	filter      *qos.ContentFilter

	dataAvailable *waitset.GuardCondition

	mu      sync.Mutex
	matched map[rtpstypes.GUID]discovery.EndpointRecord
	// pending holds samples OnData received but ReaderReliability has not
	// yet declared contiguous (keyed by (writer,seq)), released to cache
	// in Deliver order (§4.4).
	pending map[rtpstypes.Identity]rtpstypes.Sample
}

// CreateReader creates a reader for topic on participant with the named
// QoS profile (§6 Reader.create).
func (p *Participant) CreateReader(topic Topic, profileName string) (ReaderHandle, error) {
	const op = "hdds.Participant.CreateReader"
	if err := p.checkOpen(op); err != nil {
		return ReaderHandle{}, err
	}

	profile := p.profile
	if profileName != "" {
		resolved, err := config.ResolveProfile(profileName)
		if err != nil {
			return ReaderHandle{}, hddserr.Wrap(op, hddserr.InvalidArgument, err, "resolve profile %q", profileName)
		}
		profile = resolved
	}

	filter, err := qos.CompileContentFilter(profile.ContentFilter)
	if err != nil {
		return ReaderHandle{}, hddserr.Wrap(op, hddserr.InvalidArgument, err, "compile content filter")
	}

	entity := p.entityIDs.NextReader(true)
	guid := rtpstypes.GUID{Prefix: p.prefix, Entity: entity}

	kind := historycache.KeepLast
	if profile.History == qos.KeepAll {
		kind = historycache.KeepAll
	}

	r := &Reader{
		participant:   p,
		guid:          guid,
		topic:         topic,
		profile:       profile,
		cache:         historycache.New(kind, maxInt(profile.HistoryDepth, 1), historycache.DefaultResourceLimits),
		filter:        filter,
		dataAvailable: waitset.NewGuardCondition(),
		matched:       make(map[rtpstypes.GUID]discovery.EndpointRecord),
		pending:       make(map[rtpstypes.Identity]rtpstypes.Sample),
	}

	if profile.Reliability == qos.Reliable {
		r.reliability = reliability.NewReaderReliability(reliability.DefaultConfig, reliability.ReaderHooks{
			SendAckNack: r.sendAckNack,
			Deliver:     r.deliver,
		})
	}

	p.mu.Lock()
	p.readers[entity] = r
	p.mu.Unlock()

	rec := discovery.EndpointRecord{
		GUID:      guid,
		Kind:      discovery.EndpointReader,
		TopicName: topic.Name,
		TypeName:  topic.TypeName,
		QoS:       profile,
	}
	p.sedp.Announce(rec)
	p.graph.AddEndpoint(rec)

	return ReaderHandle{guid: guid}, nil
}

func (p *Participant) readerFor(h ReaderHandle) (*Reader, error) {
	const op = "hdds.Reader"
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.readers[h.guid.Entity]
	if !ok || r.guid != h.guid {
		return nil, hddserr.New(op, hddserr.NotFound, "no such reader handle")
	}
	return r, nil
}

// Take drains up to cap delivered, filter-accepted samples (§6
// Reader.take). TakeEmpty is not an error: it is the expected outcome of
// polling an idle reader.
func (p *Participant) Take(h ReaderHandle, cap int) ([]rtpstypes.Sample, TakeStatus, error) {
	r, err := p.readerFor(h)
	if err != nil {
		return nil, TakeEmpty, err
	}

	all := r.cache.SnapshotAll()
	out := make([]rtpstypes.Sample, 0, minInt(cap, len(all)))
	for _, s := range all {
		if len(out) >= cap {
			break
		}
		accept, ferr := r.accepts(s)
		if ferr != nil || !accept {
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, TakeEmpty, nil
	}

	r.dataAvailable.Reset()
	for _, s := range out {
		r.cache.Take(s.Instance)
	}
	return out, TakeOK, nil
}

// DestroyReader releases a reader and unmatches every writer it was
// paired with.
func (p *Participant) DestroyReader(h ReaderHandle) error {
	r, err := p.readerFor(h)
	if err != nil {
		return err
	}
	p.sedp.Dispose(r.guid)
	p.graph.RemoveEndpoint(r.guid)

	p.mu.Lock()
	delete(p.readers, h.guid.Entity)
	p.mu.Unlock()
	return nil
}

func (r *Reader) accepts(s rtpstypes.Sample) (bool, error) {
	if r.filter == nil {
		return true, nil
	}
	return r.filter.Accepts(map[string]any{
		"writer_guid": s.WriterGUID.String(),
		"disposed":    s.Status.Disposed(),
	})
}

func (r *Reader) matchWriter(remote discovery.EndpointRecord) {
	remoteProfile, _ := remote.QoS.(qos.Profile)
	if ok, _ := qos.Compatible(remoteProfile, r.profile); !ok {
		r.participant.metrics.IncompatibleQoS(r.guid.String(), r.topic.Name)
		return
	}

	r.mu.Lock()
	r.matched[remote.GUID] = remote
	count := len(r.matched)
	r.mu.Unlock()
	r.participant.metrics.SetMatched(r.guid.String(), r.topic.Name, "publisher", count)

	if r.reliability != nil {
		r.reliability.MatchWriter(remote.GUID)
	}
}

func (r *Reader) onData(writer rtpstypes.GUID, ev rtps.Event) {
	seq := ev.WriterSN
	sample := rtpstypes.Sample{
		WriterGUID:      writer,
		SequenceNumber:  seq,
		ReceptionTime:   time.Now(),
		Payload:         append([]byte(nil), ev.Payload...),
		Instance:        rtpstypes.NewInstanceKey(ev.Payload),
	}
	if ev.KeyOnly {
		sample.Status |= rtpstypes.StatusKeyOnly
	}

	if r.reliability == nil {
		r.storeSample(sample)
		return
	}

	r.mu.Lock()
	r.pending[sample.Identity()] = sample
	r.mu.Unlock()
	r.reliability.OnData(writer, seq)
}

func (r *Reader) deliver(writer rtpstypes.GUID, seq rtpstypes.SequenceNumber) {
	id := rtpstypes.Identity{Writer: writer, Seq: seq}
	r.mu.Lock()
	sample, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	r.storeSample(sample)
}

func (r *Reader) storeSample(sample rtpstypes.Sample) {
	if err := r.cache.Write(sample); err != nil {
		r.participant.metrics.SampleLost(r.guid.String(), r.topic.Name)
		return
	}
	r.dataAvailable.Trigger()
}

func (r *Reader) onHeartbeat(writer rtpstypes.GUID, ev rtps.Event) {
	if r.reliability == nil {
		return
	}
	r.reliability.OnHeartbeat(writer, ev.FirstSN, ev.LastSN, ev.Final)
}

func (r *Reader) onGap(writer rtpstypes.GUID, ev rtps.Event) {
	if r.reliability == nil {
		return
	}
	r.reliability.OnGap(writer, ev.GapStart, ev.GapSet)
}

func (r *Reader) sendAckNack(writer rtpstypes.GUID, state rtpstypes.SequenceNumberSet, count int32) {
	r.mu.Lock()
	rec, ok := r.matched[writer]
	r.mu.Unlock()
	if !ok {
		return
	}
	sub := rtps.BuildAckNack(r.guid.Entity, writer.Entity, state, count, false)
	datagram := rtps.BuildMessage(r.guid.Prefix, [][]byte{sub})
	for _, loc := range rec.Locators {
		_ = r.participant.transport.Send(loc, datagram)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
