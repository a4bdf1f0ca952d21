package transport_test

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hdds-io/hdds/internal/rtpstypes"
	"github.com/hdds-io/hdds/internal/transport"
)

func TestResolvePrefersSHMOnSameHost(t *testing.T) {
	shm := rtpstypes.Locator{Kind: rtpstypes.TransportSHM, HostID: 7, Port: 1}
	uni := rtpstypes.UDPLocator(net.IPv4(10, 0, 0, 1), 7411)
	remotes := []transport.RemoteEndpoint{{SHM: shm, HasSHM: true, Unicast: []rtpstypes.Locator{uni}}}

	got := transport.Resolve(remotes, transport.ResolveOptions{LocalHostID: 7, MulticastThreshold: 4})
	require.Equal(t, []rtpstypes.Locator{shm}, got)
}

func TestResolveFallsBackToTCPWhenPolicyExcludesUDP(t *testing.T) {
	tcpLoc := rtpstypes.Locator{Kind: rtpstypes.TransportTCPv4, Port: 9000}
	uni := rtpstypes.UDPLocator(net.IPv4(10, 0, 0, 1), 7411)
	remotes := []transport.RemoteEndpoint{{TCP: tcpLoc, HasTCP: true, Unicast: []rtpstypes.Locator{uni}}}

	got := transport.Resolve(remotes, transport.ResolveOptions{TCPOnly: true, MulticastThreshold: 4})
	require.Equal(t, []rtpstypes.Locator{tcpLoc}, got)
}

func TestResolveUsesMulticastAboveThreshold(t *testing.T) {
	group := rtpstypes.UDPLocator(net.IPv4(239, 255, 0, 1), 7400)
	remotes := []transport.RemoteEndpoint{
		{Multicast: group, HasMulticast: true},
		{Multicast: group, HasMulticast: true},
		{Multicast: group, HasMulticast: true},
	}

	got := transport.Resolve(remotes, transport.ResolveOptions{MulticastThreshold: 2})
	require.Equal(t, []rtpstypes.Locator{group}, got)
}

func TestResolveUsesUnicastBelowThreshold(t *testing.T) {
	group := rtpstypes.UDPLocator(net.IPv4(239, 255, 0, 1), 7400)
	uni1 := rtpstypes.UDPLocator(net.IPv4(10, 0, 0, 1), 7411)
	uni2 := rtpstypes.UDPLocator(net.IPv4(10, 0, 0, 2), 7411)
	remotes := []transport.RemoteEndpoint{
		{Multicast: group, HasMulticast: true, Unicast: []rtpstypes.Locator{uni1}},
		{Multicast: group, HasMulticast: true, Unicast: []rtpstypes.Locator{uni2}},
	}

	got := transport.Resolve(remotes, transport.ResolveOptions{MulticastThreshold: 5})
	require.ElementsMatch(t, []rtpstypes.Locator{uni1, uni2}, got)
}
