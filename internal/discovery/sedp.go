package discovery

import (
	"sync"

	"github.com/hdds-io/hdds/internal/rtpstypes"
)

// EndpointKind distinguishes publications from subscriptions in the
// SEDP registries (§4.7).
type EndpointKind int

const (
	EndpointWriter EndpointKind = iota
	EndpointReader
)

// EndpointRecord is what SEDP announces for one writer or reader,
// including its QoS profile and type identity (§4.7, §6).
type EndpointRecord struct {
	GUID       rtpstypes.GUID
	Kind       EndpointKind
	TopicName  string
	TypeName   string
	TypeID     [14]byte
	HasTypeID  bool
	QoS        any // *qos.Profile; kept untyped here to avoid an import cycle with internal/qos
	Locators   []rtpstypes.Locator
	Disposed   bool
}

// Registry holds every publication and subscription this participant
// knows about (its own and discovered peers') (§4.7). It keeps endpoint
// records only; it holds no separate topic records.
type Registry struct {
	mu          sync.RWMutex
	endpoints   map[rtpstypes.GUID]EndpointRecord
	onAnnounce  func(EndpointRecord)
	onDisposed  func(rtpstypes.GUID)
}

// NewRegistry builds an empty Registry. onAnnounce is invoked for every
// new or updated endpoint (feeding the QoS engine's matching pass,
// §4.9); onDisposed for every disposal.
func NewRegistry(onAnnounce func(EndpointRecord), onDisposed func(rtpstypes.GUID)) *Registry {
	return &Registry{
		endpoints:  make(map[rtpstypes.GUID]EndpointRecord),
		onAnnounce: onAnnounce,
		onDisposed: onDisposed,
	}
}

// Announce records a new or updated endpoint.
func (r *Registry) Announce(rec EndpointRecord) {
	r.mu.Lock()
	r.endpoints[rec.GUID] = rec
	r.mu.Unlock()
	if r.onAnnounce != nil {
		r.onAnnounce(rec)
	}
}

// Dispose removes an endpoint, announced via a DATA submessage with the
// disposed status flag set (§4.7).
func (r *Registry) Dispose(guid rtpstypes.GUID) {
	r.mu.Lock()
	_, ok := r.endpoints[guid]
	delete(r.endpoints, guid)
	r.mu.Unlock()
	if ok && r.onDisposed != nil {
		r.onDisposed(guid)
	}
}

// Lookup returns the record for guid, if known.
func (r *Registry) Lookup(guid rtpstypes.GUID) (EndpointRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.endpoints[guid]
	return rec, ok
}

// ForTopic returns every live endpoint of the given kind bound to topic.
func (r *Registry) ForTopic(topic string, kind EndpointKind) []EndpointRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []EndpointRecord
	for _, rec := range r.endpoints {
		if rec.TopicName == topic && rec.Kind == kind {
			out = append(out, rec)
		}
	}
	return out
}

// RemoveParticipant drops every endpoint belonging to prefix, called on
// SPDP lease expiry (§4.7).
func (r *Registry) RemoveParticipant(prefix rtpstypes.GuidPrefix) {
	r.mu.Lock()
	var toRemove []rtpstypes.GUID
	for guid := range r.endpoints {
		if guid.Prefix == prefix {
			toRemove = append(toRemove, guid)
		}
	}
	for _, guid := range toRemove {
		delete(r.endpoints, guid)
	}
	r.mu.Unlock()
	for _, guid := range toRemove {
		if r.onDisposed != nil {
			r.onDisposed(guid)
		}
	}
}
