// Package discovery implements SPDP participant discovery and SEDP
// endpoint discovery (§4.7): periodic announcement, lease watchdogs,
// and the builtin publication/subscription/topic registries that feed
// the QoS engine's matching pass.
package discovery

import (
	"sync"
	"time"

	"github.com/hdds-io/hdds/internal/rtpstypes"
)

// ParticipantRecord is what SPDP announces and what a peer registers on
// reception (§4.7).
type ParticipantRecord struct {
	GUIDPrefix    rtpstypes.GuidPrefix
	VendorID      [2]byte
	LeaseDuration time.Duration
	MetatrafficUnicast   []rtpstypes.Locator
	MetatrafficMulticast []rtpstypes.Locator
	DefaultUnicast       []rtpstypes.Locator
	UserData             []byte
}

// SPDPConfig controls announcement timing (§4.7).
type SPDPConfig struct {
	Period      time.Duration
	BurstCount  int
	BurstPeriod time.Duration
}

// DefaultSPDPConfig matches §4.7's defaults: first five repeats at 1s,
// then steady state every 30s.
var DefaultSPDPConfig = SPDPConfig{Period: 30 * time.Second, BurstCount: 5, BurstPeriod: 1 * time.Second}

// SPDPAgent drives one local participant's announcement schedule and
// maintains the set of discovered peers with lease watchdogs. It is
// owned by exactly one Participant, never a package singleton (§9).
type SPDPAgent struct {
	cfg   SPDPConfig
	local ParticipantRecord

	announce func(ParticipantRecord)

	mu      sync.Mutex
	peers   map[rtpstypes.GuidPrefix]*peerEntry
	onLost  func(rtpstypes.GuidPrefix)
	onFound func(ParticipantRecord)

	stop chan struct{}
}

type peerEntry struct {
	record ParticipantRecord
	timer  *time.Timer
}

// NewSPDPAgent builds an agent for local, announcing via announce and
// reporting peer lifecycle via onFound/onLost.
func NewSPDPAgent(cfg SPDPConfig, local ParticipantRecord, announce func(ParticipantRecord), onFound func(ParticipantRecord), onLost func(rtpstypes.GuidPrefix)) *SPDPAgent {
	if cfg.Period == 0 {
		cfg = DefaultSPDPConfig
	}
	return &SPDPAgent{
		cfg: cfg, local: local, announce: announce,
		peers: make(map[rtpstypes.GuidPrefix]*peerEntry),
		onFound: onFound, onLost: onLost,
		stop: make(chan struct{}),
	}
}

// Start begins the burst-then-steady-state announcement schedule.
func (a *SPDPAgent) Start() {
	go a.announceLoop()
}

// Stop ends the announcement schedule and every lease watchdog.
func (a *SPDPAgent) Stop() {
	close(a.stop)
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range a.peers {
		p.timer.Stop()
	}
}

func (a *SPDPAgent) announceLoop() {
	for i := 0; i < a.cfg.BurstCount; i++ {
		a.fire()
		select {
		case <-time.After(a.cfg.BurstPeriod):
		case <-a.stop:
			return
		}
	}
	ticker := time.NewTicker(a.cfg.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.fire()
		case <-a.stop:
			return
		}
	}
}

func (a *SPDPAgent) fire() {
	if a.announce != nil {
		a.announce(a.local)
	}
}

// OnReceive registers or refreshes a peer's lease on receipt of an SPDP
// announcement. A self-match (same GUID prefix as the local participant)
// is dropped per the recommended resolution to §9's open question on
// loopback SPDP echoes.
func (a *SPDPAgent) OnReceive(record ParticipantRecord) {
	if record.GUIDPrefix == a.local.GUIDPrefix {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	lease := record.LeaseDuration
	if lease <= 0 {
		lease = a.cfg.Period * 2
	}
	existing, ok := a.peers[record.GUIDPrefix]
	if ok {
		existing.record = record
		existing.timer.Reset(lease)
		return
	}

	entry := &peerEntry{record: record}
	entry.timer = time.AfterFunc(lease, func() { a.expire(record.GUIDPrefix) })
	a.peers[record.GUIDPrefix] = entry
	if a.onFound != nil {
		a.onFound(record)
	}
}

func (a *SPDPAgent) expire(prefix rtpstypes.GuidPrefix) {
	a.mu.Lock()
	_, ok := a.peers[prefix]
	delete(a.peers, prefix)
	a.mu.Unlock()
	if ok && a.onLost != nil {
		a.onLost(prefix)
	}
}

// Peers returns a snapshot of every currently leased peer.
func (a *SPDPAgent) Peers() []ParticipantRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]ParticipantRecord, 0, len(a.peers))
	for _, p := range a.peers {
		out = append(out, p.record)
	}
	return out
}
