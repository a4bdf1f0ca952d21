// Package graph implements the discovery graph cache (§4.8): a
// versioned, copy-on-write view over the participants, endpoints and
// topics this participant currently knows about, built from the
// discovery package's SPDP/SEDP events.
//
// Writers (discovery callbacks) publish a new immutable Snapshot under
// a single exclusive mutation lock. Readers load the current version
// pointer lock-free via atomic.Pointer and iterate a snapshot that
// never changes underneath them. A monotonically increasing version
// number lets a caller detect whether the graph moved during its
// traversal and retry.
package graph

import (
	"encoding/binary"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/hdds-io/hdds/internal/discovery"
	"github.com/hdds-io/hdds/internal/rtpstypes"
)

// Node is one discovered (or local) participant and the endpoints it
// hosts, as currently known.
type Node struct {
	Prefix      rtpstypes.GuidPrefix
	Publishers  []discovery.EndpointRecord
	Subscribers []discovery.EndpointRecord
}

// Topic aggregates every known publisher/subscriber GUID bound to one
// topic name, regardless of which participant hosts them.
type Topic struct {
	Name        string
	TypeName    string
	Publishers  []rtpstypes.GUID
	Subscribers []rtpstypes.GUID
}

// Snapshot is an immutable view of the graph at one version. Never
// mutate a Snapshot's slices or maps in place; Cache always builds a
// fresh one.
type Snapshot struct {
	Version     uint64
	Fingerprint uint64
	Nodes       map[rtpstypes.GuidPrefix]Node
	Topics      map[string]Topic
}

// GuardCondition is a sticky boolean condition that is set whenever the
// graph mutates and cleared by whoever is waiting on it (typically a
// waitset). It carries no payload by design: a waiter reacts by
// re-reading the graph, not by inspecting the condition.
type GuardCondition struct {
	triggered atomic.Bool
}

// Trigger sets the condition. Idempotent.
func (g *GuardCondition) Trigger() { g.triggered.Store(true) }

// TriggerValue reports whether the condition is currently set.
func (g *GuardCondition) TriggerValue() bool { return g.triggered.Load() }

// Reset clears the condition, typically called by a waitset after it
// has observed the trigger and re-read the graph.
func (g *GuardCondition) Reset() { g.triggered.Store(false) }

// Cache is the owned, per-participant graph cache described by §4.8.
// It is never a package-level singleton: each Participant constructs
// and owns exactly one.
type Cache struct {
	mu      sync.Mutex // serializes mutations only; readers never take it
	current atomic.Pointer[Snapshot]
	guard   GuardCondition
}

// New builds an empty graph cache.
func New() *Cache {
	c := &Cache{}
	empty := &Snapshot{
		Nodes:  make(map[rtpstypes.GuidPrefix]Node),
		Topics: make(map[string]Topic),
	}
	c.current.Store(empty)
	return c
}

// GraphGuardCondition returns the condition triggered on every mutation
// (§4.8). A waitset aggregates it alongside reader/writer conditions.
func (c *Cache) GraphGuardCondition() *GuardCondition {
	return &c.guard
}

// Version returns the current snapshot's version without copying it.
func (c *Cache) Version() uint64 {
	return c.current.Load().Version
}

// ForEachNode calls cb for every currently known node, bound to a
// single consistent snapshot. *versionOut, if non-nil, receives the
// snapshot's version so the caller can detect a concurrent mutation by
// comparing it against a later read.
func (c *Cache) ForEachNode(cb func(Node), versionOut *uint64) {
	snap := c.current.Load()
	if versionOut != nil {
		*versionOut = snap.Version
	}
	for _, n := range snap.Nodes {
		cb(n)
	}
}

// ForEachTopic calls cb for every currently known topic, bound to a
// single consistent snapshot.
func (c *Cache) ForEachTopic(cb func(Topic), versionOut *uint64) {
	snap := c.current.Load()
	if versionOut != nil {
		*versionOut = snap.Version
	}
	for _, t := range snap.Topics {
		cb(t)
	}
}

// ForEachPublisherEndpoint calls cb for every publisher hosted by
// node's latest known state.
func (c *Cache) ForEachPublisherEndpoint(prefix rtpstypes.GuidPrefix, cb func(discovery.EndpointRecord)) {
	snap := c.current.Load()
	n, ok := snap.Nodes[prefix]
	if !ok {
		return
	}
	for _, e := range n.Publishers {
		cb(e)
	}
}

// ForEachSubscriptionEndpoint calls cb for every subscriber hosted by
// node's latest known state.
func (c *Cache) ForEachSubscriptionEndpoint(prefix rtpstypes.GuidPrefix, cb func(discovery.EndpointRecord)) {
	snap := c.current.Load()
	n, ok := snap.Nodes[prefix]
	if !ok {
		return
	}
	for _, e := range n.Subscribers {
		cb(e)
	}
}

// AddParticipant ensures prefix has a node entry, publishing a new
// snapshot and triggering the guard condition.
func (c *Cache) AddParticipant(prefix rtpstypes.GuidPrefix) {
	c.mutate(func(nodes map[rtpstypes.GuidPrefix]Node, topics map[string]Topic) {
		if _, ok := nodes[prefix]; !ok {
			nodes[prefix] = Node{Prefix: prefix}
		}
	})
}

// RemoveParticipant drops prefix's node and every endpoint of its that
// had been folded into topic records, mirroring SPDP lease expiry
// cascading through SEDP (§4.7, §4.8).
func (c *Cache) RemoveParticipant(prefix rtpstypes.GuidPrefix) {
	c.mutate(func(nodes map[rtpstypes.GuidPrefix]Node, topics map[string]Topic) {
		delete(nodes, prefix)
		for name, t := range topics {
			t.Publishers = filterByPrefix(t.Publishers, prefix)
			t.Subscribers = filterByPrefix(t.Subscribers, prefix)
			if len(t.Publishers) == 0 && len(t.Subscribers) == 0 {
				delete(topics, name)
			} else {
				topics[name] = t
			}
		}
	})
}

// AddEndpoint folds a newly announced (or updated) endpoint into both
// its node and its topic record.
func (c *Cache) AddEndpoint(rec discovery.EndpointRecord) {
	c.mutate(func(nodes map[rtpstypes.GuidPrefix]Node, topics map[string]Topic) {
		n := nodes[rec.GUID.Prefix]
		n.Prefix = rec.GUID.Prefix
		if rec.Kind == discovery.EndpointWriter {
			n.Publishers = upsertEndpoint(n.Publishers, rec)
		} else {
			n.Subscribers = upsertEndpoint(n.Subscribers, rec)
		}
		nodes[rec.GUID.Prefix] = n

		t := topics[rec.TopicName]
		t.Name = rec.TopicName
		t.TypeName = rec.TypeName
		if rec.Kind == discovery.EndpointWriter {
			t.Publishers = upsertGUID(t.Publishers, rec.GUID)
		} else {
			t.Subscribers = upsertGUID(t.Subscribers, rec.GUID)
		}
		topics[rec.TopicName] = t
	})
}

// RemoveEndpoint drops one endpoint by GUID from its node and every
// topic record, searching all topics since the caller may not know
// which topic a now-disposed GUID belonged to.
func (c *Cache) RemoveEndpoint(guid rtpstypes.GUID) {
	c.mutate(func(nodes map[rtpstypes.GuidPrefix]Node, topics map[string]Topic) {
		if n, ok := nodes[guid.Prefix]; ok {
			n.Publishers = filterByGUID(n.Publishers, guid)
			n.Subscribers = filterByGUID(n.Subscribers, guid)
			nodes[guid.Prefix] = n
		}
		for name, t := range topics {
			t.Publishers = removeGUID(t.Publishers, guid)
			t.Subscribers = removeGUID(t.Subscribers, guid)
			if len(t.Publishers) == 0 && len(t.Subscribers) == 0 {
				delete(topics, name)
			} else {
				topics[name] = t
			}
		}
	})
}

// mutate takes the exclusive mutation lock, hands the caller a
// deep-enough copy of the current node/topic maps to edit freely, then
// publishes the result as a new versioned, fingerprinted snapshot and
// fires the guard condition.
func (c *Cache) mutate(edit func(nodes map[rtpstypes.GuidPrefix]Node, topics map[string]Topic)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.current.Load()
	nodes := make(map[rtpstypes.GuidPrefix]Node, len(prev.Nodes))
	for k, v := range prev.Nodes {
		nodes[k] = v
	}
	topics := make(map[string]Topic, len(prev.Topics))
	for k, v := range prev.Topics {
		topics[k] = v
	}

	edit(nodes, topics)

	next := &Snapshot{
		Version: prev.Version + 1,
		Nodes:   nodes,
		Topics:  topics,
	}
	next.Fingerprint = fingerprint(next)
	c.current.Store(next)
	c.guard.Trigger()
}

// fingerprint folds every node and topic key into a single xxhash
// digest, giving callers a cheap way to compare two snapshots for
// equality without a deep walk (e.g. a retry loop bailing out early
// once the fingerprint stops changing).
func fingerprint(s *Snapshot) uint64 {
	keys := make([]string, 0, len(s.Nodes)+len(s.Topics))
	for prefix := range s.Nodes {
		keys = append(keys, "n:"+prefix.String())
	}
	for name := range s.Topics {
		keys = append(keys, "t:"+name)
	}
	sort.Strings(keys)

	h := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], s.Version)
	_, _ = h.Write(buf[:])
	for _, k := range keys {
		_, _ = h.Write([]byte(k))
	}
	return h.Sum64()
}

func upsertEndpoint(list []discovery.EndpointRecord, rec discovery.EndpointRecord) []discovery.EndpointRecord {
	for i, e := range list {
		if e.GUID == rec.GUID {
			out := make([]discovery.EndpointRecord, len(list))
			copy(out, list)
			out[i] = rec
			return out
		}
	}
	out := make([]discovery.EndpointRecord, len(list), len(list)+1)
	copy(out, list)
	return append(out, rec)
}

func upsertGUID(list []rtpstypes.GUID, g rtpstypes.GUID) []rtpstypes.GUID {
	for _, existing := range list {
		if existing == g {
			return list
		}
	}
	return append(list, g)
}

// The filter/remove helpers below always allocate a fresh backing
// array rather than slicing list[:0] in place: list's backing array is
// still shared with a previously published Snapshot, and mutating it
// in place would corrupt a concurrent reader's in-progress traversal.

func removeGUID(list []rtpstypes.GUID, g rtpstypes.GUID) []rtpstypes.GUID {
	var out []rtpstypes.GUID
	for _, existing := range list {
		if existing != g {
			out = append(out, existing)
		}
	}
	return out
}

func filterByGUID(list []discovery.EndpointRecord, g rtpstypes.GUID) []discovery.EndpointRecord {
	var out []discovery.EndpointRecord
	for _, e := range list {
		if e.GUID != g {
			out = append(out, e)
		}
	}
	return out
}

func filterByPrefix(list []rtpstypes.GUID, prefix rtpstypes.GuidPrefix) []rtpstypes.GUID {
	var out []rtpstypes.GUID
	for _, g := range list {
		if g.Prefix != prefix {
			out = append(out, g)
		}
	}
	return out
}
