package transport

import "github.com/hdds-io/hdds/internal/rtpstypes"

// RemoteEndpoint is the subset of a matched remote endpoint's locators
// relevant to the send-path decision tree (§4.5).
type RemoteEndpoint struct {
	SHM       rtpstypes.Locator
	HasSHM    bool
	TCP       rtpstypes.Locator
	HasTCP    bool
	Unicast   []rtpstypes.Locator
	Multicast rtpstypes.Locator
	HasMulticast bool
}

// ResolveOptions parameterizes the decision tree with the active
// profile's transport policy.
type ResolveOptions struct {
	LocalHostID        uint64
	TCPOnly            bool
	MulticastThreshold int
}

// Resolve picks the locators to send to for one logical write, given the
// set of matched remote endpoints, following §4.5's three-step decision
// tree: prefer SHM when available on the local host, then TCP if
// required or UDP is policy-excluded, else UDP unicast per remote
// (switching to multicast when enough remote readers share a group).
func Resolve(remotes []RemoteEndpoint, opts ResolveOptions) []rtpstypes.Locator {
	var out []rtpstypes.Locator
	var udpOnly []RemoteEndpoint

	for _, r := range remotes {
		switch {
		case r.HasSHM && r.SHM.HostID == opts.LocalHostID:
			out = append(out, r.SHM)
		case opts.TCPOnly || !r.HasUDPCapableLocator():
			if r.HasTCP {
				out = append(out, r.TCP)
			}
		default:
			udpOnly = append(udpOnly, r)
		}
	}

	if len(udpOnly) == 0 {
		return out
	}

	groupCounts := make(map[rtpstypes.Locator]int)
	for _, r := range udpOnly {
		if r.HasMulticast {
			groupCounts[r.Multicast]++
		}
	}

	sentMulticast := make(map[rtpstypes.Locator]bool)
	for _, r := range udpOnly {
		if r.HasMulticast && groupCounts[r.Multicast] >= opts.MulticastThreshold {
			if !sentMulticast[r.Multicast] {
				out = append(out, r.Multicast)
				sentMulticast[r.Multicast] = true
			}
			continue
		}
		out = append(out, r.Unicast...)
	}
	return out
}

// HasUDPCapableLocator reports whether this remote endpoint advertised
// any UDP locator at all.
func (r RemoteEndpoint) HasUDPCapableLocator() bool {
	return len(r.Unicast) > 0 || r.HasMulticast
}
