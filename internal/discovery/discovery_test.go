package discovery_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hdds-io/hdds/internal/discovery"
	"github.com/hdds-io/hdds/internal/rtpstypes"
)

func TestSPDPDropsSelfMatch(t *testing.T) {
	local := discovery.ParticipantRecord{GUIDPrefix: rtpstypes.NewGuidPrefix()}
	var foundCount int
	var mu sync.Mutex
	a := discovery.NewSPDPAgent(discovery.SPDPConfig{Period: time.Hour, BurstCount: 0}, local, nil,
		func(discovery.ParticipantRecord) {
			mu.Lock()
			foundCount++
			mu.Unlock()
		}, nil)

	a.OnReceive(local) // self-echo
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 0, foundCount)
	require.Empty(t, a.Peers())
}

func TestSPDPRegistersPeerAndExpiresLease(t *testing.T) {
	local := discovery.ParticipantRecord{GUIDPrefix: rtpstypes.NewGuidPrefix()}
	lostCh := make(chan rtpstypes.GuidPrefix, 1)
	a := discovery.NewSPDPAgent(discovery.SPDPConfig{Period: time.Hour, BurstCount: 0}, local, nil, nil,
		func(prefix rtpstypes.GuidPrefix) { lostCh <- prefix })

	peer := discovery.ParticipantRecord{GUIDPrefix: rtpstypes.NewGuidPrefix(), LeaseDuration: 10 * time.Millisecond}
	a.OnReceive(peer)
	require.Len(t, a.Peers(), 1)

	select {
	case got := <-lostCh:
		require.Equal(t, peer.GUIDPrefix, got)
	case <-time.After(time.Second):
		t.Fatal("lease never expired")
	}
}

func TestRegistryAnnounceAndDispose(t *testing.T) {
	var announced, disposed int
	var mu sync.Mutex
	reg := discovery.NewRegistry(
		func(discovery.EndpointRecord) {
			mu.Lock()
			announced++
			mu.Unlock()
		},
		func(rtpstypes.GUID) {
			mu.Lock()
			disposed++
			mu.Unlock()
		},
	)

	guid := rtpstypes.GUID{Entity: rtpstypes.EntityId{0, 0, 0, 1}}
	reg.Announce(discovery.EndpointRecord{GUID: guid, Kind: discovery.EndpointWriter, TopicName: "Square"})
	require.Len(t, reg.ForTopic("Square", discovery.EndpointWriter), 1)

	reg.Dispose(guid)
	_, ok := reg.Lookup(guid)
	require.False(t, ok)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, announced)
	require.Equal(t, 1, disposed)
}

func TestRegistryRemoveParticipantDropsAllItsEndpoints(t *testing.T) {
	reg := discovery.NewRegistry(nil, nil)
	prefix := rtpstypes.NewGuidPrefix()
	g1 := rtpstypes.GUID{Prefix: prefix, Entity: rtpstypes.EntityId{0, 0, 0, 1}}
	g2 := rtpstypes.GUID{Prefix: prefix, Entity: rtpstypes.EntityId{0, 0, 0, 2}}
	reg.Announce(discovery.EndpointRecord{GUID: g1})
	reg.Announce(discovery.EndpointRecord{GUID: g2})

	reg.RemoveParticipant(prefix)
	_, ok1 := reg.Lookup(g1)
	_, ok2 := reg.Lookup(g2)
	require.False(t, ok1)
	require.False(t, ok2)
}
