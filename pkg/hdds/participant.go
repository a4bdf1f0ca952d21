package hdds

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hdds-io/hdds/internal/config"
	"github.com/hdds-io/hdds/internal/discovery"
	"github.com/hdds-io/hdds/internal/graph"
	"github.com/hdds-io/hdds/internal/hddserr"
	"github.com/hdds-io/hdds/internal/metrics"
	"github.com/hdds-io/hdds/internal/qos"
	"github.com/hdds-io/hdds/internal/rtps"
	"github.com/hdds-io/hdds/internal/rtpstypes"
	"github.com/hdds-io/hdds/internal/runtime"
	"github.com/hdds-io/hdds/internal/transport"
	"github.com/hdds-io/hdds/internal/typedesc"
	"github.com/hdds-io/hdds/internal/waitset"
)

// Participant is the root handle of one domain join (§6). It owns every
// other engine value — transport, discovery, graph, runtime, metrics —
// as explicit fields, never as package-level state (§9).
type Participant struct {
	domainID int
	prefix   rtpstypes.GuidPrefix
	vendor   [2]byte
	profile  qos.Profile

	runtime    *runtime.Runtime
	transport  *transport.Manager
	spdp       *discovery.SPDPAgent
	sedp       *discovery.Registry
	graph      *graph.Cache
	metrics    *metrics.Registry
	types      *typedesc.Registry
	entityIDs  rtpstypes.EntityIdAllocator

	mu       sync.RWMutex
	closed   bool
	writers  map[rtpstypes.EntityId]*Writer
	readers  map[rtpstypes.EntityId]*Reader
	waitsets map[uint64]*waitsetEntry
	nextWS   uint64
}

type waitsetEntry struct {
	ws   *waitset.WaitSet
	disp *waitset.Dispatcher
}

// CreateParticipant joins domainID, resolving the named QoS profile as
// the default applied when Writer/Reader creation omits one (§6
// Participant.create). An empty profile name falls back to
// config.Keys.DefaultProfile.
func CreateParticipant(domainID int, profileName string) (*Participant, error) {
	const op = "hdds.CreateParticipant"

	if profileName == "" {
		profileName = config.Keys.DefaultProfile
	}
	profile, err := config.ResolveProfile(profileName)
	if err != nil {
		return nil, hddserr.Wrap(op, hddserr.InvalidArgument, err, "resolve default profile %q", profileName)
	}

	rt, err := runtime.New(runtime.Options{
		Workers:    config.Keys.Runtime.Workers,
		EnableGops: config.Keys.Runtime.EnableGops,
		GopsAddr:   config.Keys.Runtime.GopsAddr,
	})
	if err != nil {
		return nil, hddserr.Wrap(op, hddserr.Fatal, err, "build runtime")
	}

	p := &Participant{
		domainID: domainID,
		prefix:   rtpstypes.NewGuidPrefix(),
		profile:  profile,
		runtime:  rt,
		graph:    graph.New(),
		metrics:  metrics.New(),
		types:    typedesc.NewRegistry(),
		writers:  make(map[rtpstypes.EntityId]*Writer),
		readers:  make(map[rtpstypes.EntityId]*Reader),
		waitsets: make(map[uint64]*waitsetEntry),
	}
	copy(p.vendor[:], []byte{0x01, 0x0f})

	p.transport = transport.NewManager(config.Keys.HostID, p.onDatagram)
	p.sedp = discovery.NewRegistry(p.onEndpointAnnounced, p.onEndpointDisposed)
	p.spdp = discovery.NewSPDPAgent(discovery.DefaultSPDPConfig, discovery.ParticipantRecord{
		GUIDPrefix:    p.prefix,
		VendorID:      p.vendor,
		LeaseDuration: 30 * time.Second,
	}, func(discovery.ParticipantRecord) {}, p.onParticipantFound, p.onParticipantLost)

	for _, raw := range config.Keys.Listen.Unicast {
		loc, err := parseLocator(raw)
		if err != nil {
			return nil, hddserr.Wrap(op, hddserr.InvalidArgument, err, "parse listen locator %q", raw)
		}
		if err := p.transport.Bind(loc); err != nil {
			return nil, hddserr.Wrap(op, hddserr.Transport, err, "bind %q", raw)
		}
	}

	if err := p.runtime.Start(); err != nil {
		return nil, hddserr.Wrap(op, hddserr.Fatal, err, "start runtime")
	}
	p.graph.AddParticipant(p.prefix)
	// Adding our own node is not a remote discovery; clear the guard so
	// graph-changed waiters see only remote changes.
	p.graph.GraphGuardCondition().Reset()
	p.spdp.Start()

	return p, nil
}

// RegisterDescriptor stores a type descriptor under typeName in the
// participant's type registry (§6 "Dynamic types": register_descriptor).
// Readers and writers do not consult the registry: instance keys are
// hashed from the whole payload, and the content filter sees only the
// sample's writer_guid and disposed fields.
func (p *Participant) RegisterDescriptor(typeName string, d *typedesc.Descriptor) {
	p.types.Register(typeName, d)
}

// Destroy releases every resource the participant owns, draining pending
// reliable writes within a bounded grace period before shutting down
// (§4 lifecycle "destroyed on explicit release, draining queues with a
// bounded grace period").
func (p *Participant) Destroy() error {
	const op = "hdds.Participant.Destroy"
	const drainGrace = 1 * time.Second

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	writers := make([]*Writer, 0, len(p.writers))
	for _, w := range p.writers {
		writers = append(writers, w)
	}
	p.mu.Unlock()

	deadline := time.Now().Add(drainGrace)
	for _, w := range writers {
		for w.hasPendingReliableWrites() && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
	}

	p.spdp.Stop()
	p.graph.RemoveParticipant(p.prefix)
	if err := p.transport.Close(); err != nil {
		return hddserr.Wrap(op, hddserr.Transport, err, "close transport")
	}
	if err := p.runtime.Shutdown(); err != nil {
		return hddserr.Wrap(op, hddserr.Fatal, err, "shutdown runtime")
	}
	return nil
}

func (p *Participant) checkOpen(op string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return hddserr.New(op, hddserr.InvalidArgument, "participant destroyed")
	}
	return nil
}

// onDatagram is transport.Manager's ReceiveFunc: it parses the datagram
// as an RTPS message and routes each event to the matched local writer
// or reader (§4.2, §4.4).
func (p *Participant) onDatagram(dg transport.Datagram) {
	msg, err := rtps.ParseMessage(dg.Payload)
	if err != nil {
		return // malformed packet: drop silently per §4 "Protocol -> sample dropped"
	}
	for _, ev := range msg.Events {
		p.dispatchEvent(ev)
	}
}

// dispatchEvent routes by matched writer GUID, not by the submessage's
// readerId field: a writer addresses DATA/HEARTBEAT/GAP to
// ENTITYID_UNKNOWN whenever it has more than one local match sharing
// the destination locator (§4.2), so the readerId header is not a
// reliable demultiplexing key. ACKNACK is always addressed to a
// specific writer entity id, so that direction can index directly.
func (p *Participant) dispatchEvent(ev rtps.Event) {
	writerGUID := rtpstypes.GUID{Prefix: ev.SrcPrefix, Entity: ev.WriterID}
	readerGUID := rtpstypes.GUID{Prefix: ev.SrcPrefix, Entity: ev.ReaderID}

	switch ev.Kind {
	case rtps.KindData, rtps.KindDataFrag:
		for _, r := range p.readersMatchedWith(writerGUID) {
			r.onData(writerGUID, ev)
		}
	case rtps.KindHeartbeat:
		for _, r := range p.readersMatchedWith(writerGUID) {
			r.onHeartbeat(writerGUID, ev)
		}
	case rtps.KindGap:
		for _, r := range p.readersMatchedWith(writerGUID) {
			r.onGap(writerGUID, ev)
		}
	case rtps.KindAckNack:
		p.mu.RLock()
		w, ok := p.writers[ev.WriterID]
		p.mu.RUnlock()
		if ok {
			w.onAckNack(readerGUID, ev)
		}
	}
}

// readersMatchedWith returns every local reader currently matched with
// writer, across all topics.
func (p *Participant) readersMatchedWith(writer rtpstypes.GUID) []*Reader {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*Reader
	for _, r := range p.readers {
		r.mu.Lock()
		_, ok := r.matched[writer]
		r.mu.Unlock()
		if ok {
			out = append(out, r)
		}
	}
	return out
}

func (p *Participant) onEndpointAnnounced(rec discovery.EndpointRecord) {
	p.graph.AddEndpoint(rec)
	p.matchEndpoint(rec)
}

func (p *Participant) onEndpointDisposed(guid rtpstypes.GUID) {
	p.graph.RemoveEndpoint(guid)
}

func (p *Participant) onParticipantFound(rec discovery.ParticipantRecord) {
	p.graph.AddParticipant(rec.GUIDPrefix)
}

func (p *Participant) onParticipantLost(prefix rtpstypes.GuidPrefix) {
	p.graph.RemoveParticipant(prefix)
	p.sedp.RemoveParticipant(prefix)
}

// matchEndpoint runs the QoS compatibility check (§4.9) between a newly
// announced remote endpoint and every local endpoint on the same topic
// of the complementary kind, wiring the matched pair's reliability and
// transport locators on success.
func (p *Participant) matchEndpoint(remote discovery.EndpointRecord) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	switch remote.Kind {
	case discovery.EndpointWriter:
		for _, r := range p.readers {
			if r.topic.Name != remote.TopicName {
				continue
			}
			r.matchWriter(remote)
		}
	case discovery.EndpointReader:
		for _, w := range p.writers {
			if w.topic.Name != remote.TopicName {
				continue
			}
			w.matchReader(remote)
		}
	}
}

func parseLocator(raw string) (rtpstypes.Locator, error) {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok || scheme != "udpv4" {
		return rtpstypes.Locator{}, fmt.Errorf("unsupported locator scheme in %q (only udpv4:// is supported)", raw)
	}
	host, portStr, err := net.SplitHostPort(rest)
	if err != nil {
		return rtpstypes.Locator{}, err
	}
	port, err := strconv.ParseUint(portStr, 10, 32)
	if err != nil {
		return rtpstypes.Locator{}, err
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return rtpstypes.Locator{}, fmt.Errorf("invalid address %q", host)
	}
	return rtpstypes.UDPLocator(ip, uint32(port)), nil
}
