package rtpstypes

import (
	"fmt"
	"net"
)

// TransportKind is the closed variant of transport families HDDS dispatches
// over (§9 "Dynamic dispatch across transports"). Keeping this a small
// closed enum (rather than an open interface hierarchy) lets the send path
// switch over concrete kinds instead of paying for dynamic dispatch on
// every datagram.
type TransportKind uint8

const (
	TransportUDPv4 TransportKind = iota
	TransportUDPv6
	TransportTCPv4
	TransportTCPv6
	TransportSHM
	TransportLowBW
)

func (k TransportKind) String() string {
	switch k {
	case TransportUDPv4:
		return "udpv4"
	case TransportUDPv6:
		return "udpv6"
	case TransportTCPv4:
		return "tcpv4"
	case TransportTCPv6:
		return "tcpv6"
	case TransportSHM:
		return "shm"
	case TransportLowBW:
		return "lowbw"
	default:
		return "unknown"
	}
}

// Locator identifies a destination for RTPS traffic: transport kind,
// address bytes (16 bytes; v4 kinds keep the address in the last 4 bytes
// with the first 12 zero), and port (§3).
type Locator struct {
	Kind    TransportKind
	Address [16]byte
	Port    uint32
	// HostID groups SHM locators that share physical memory (§4.5); zero
	// for all other transport kinds.
	HostID uint64
}

// UDPLocator builds a Locator for a UDP endpoint from a net.IP and port.
func UDPLocator(ip net.IP, port uint32) Locator {
	kind := TransportUDPv4
	var addr [16]byte
	if v4 := ip.To4(); v4 != nil {
		copy(addr[12:], v4)
	} else {
		kind = TransportUDPv6
		copy(addr[:], ip.To16())
	}
	return Locator{Kind: kind, Address: addr, Port: port}
}

// IP extracts the net.IP for UDP/TCP locator kinds.
func (l Locator) IP() net.IP {
	switch l.Kind {
	case TransportUDPv4, TransportTCPv4:
		return net.IP(l.Address[12:16])
	default:
		return net.IP(l.Address[:])
	}
}

func (l Locator) String() string {
	switch l.Kind {
	case TransportSHM:
		return fmt.Sprintf("shm://host-%d/%d", l.HostID, l.Port)
	default:
		return fmt.Sprintf("%s://%s:%d", l.Kind, l.IP(), l.Port)
	}
}

// Equal reports whether two locators name the same destination.
func (l Locator) Equal(o Locator) bool {
	return l.Kind == o.Kind && l.Address == o.Address && l.Port == o.Port && l.HostID == o.HostID
}

// IsMulticast reports whether the locator's address is a multicast group,
// relevant only to the UDP kinds.
func (l Locator) IsMulticast() bool {
	switch l.Kind {
	case TransportUDPv4, TransportUDPv6:
		return l.IP().IsMulticast()
	default:
		return false
	}
}

// Well-known port formula constants (§6).
const (
	PortPB = 7400
	PortDG = 250
	PortPG = 2
)

// SPDPMulticastPort computes PB + DG*domain_id + d0.
func SPDPMulticastPort(domainID int) uint32 {
	return uint32(PortPB + PortDG*domainID + 0)
}

// SPDPUnicastPort computes PB + DG*domain_id + d1 + PG*participant_id.
func SPDPUnicastPort(domainID, participantID int) uint32 {
	return uint32(PortPB + PortDG*domainID + 10 + PortPG*participantID)
}

// UserMulticastPort computes PB + DG*domain_id + d2.
func UserMulticastPort(domainID int) uint32 {
	return uint32(PortPB + PortDG*domainID + 1)
}

// UserUnicastPort computes PB + DG*domain_id + d3 + PG*participant_id.
func UserUnicastPort(domainID, participantID int) uint32 {
	return uint32(PortPB + PortDG*domainID + 11 + PortPG*participantID)
}

// DefaultSPDPMulticastGroup is the default SPDP multicast group address
// (239.255.0.1 per RTPS §9.6.1.3).
func DefaultSPDPMulticastGroup(domainID int) Locator {
	ip := net.IPv4(239, 255, 0, 1)
	return UDPLocator(ip, SPDPMulticastPort(domainID))
}
