package transport

import (
	"net"

	"github.com/hdds-io/hdds/internal/rtpstypes"
)

const udpReadBufferSize = 64 * 1024

type udpEndpoint struct {
	conn   *net.UDPConn
	onRecv func(from rtpstypes.Locator, payload []byte)
	done   chan struct{}
}

// bindUDP opens a receiving UDP socket at loc, joining its multicast
// group on every interface if loc is a multicast locator (§4.5).
func bindUDP(loc rtpstypes.Locator, onRecv func(rtpstypes.Locator, []byte)) (*udpEndpoint, error) {
	addr := &net.UDPAddr{IP: loc.IP(), Port: int(loc.Port)}

	var conn *net.UDPConn
	var err error
	if loc.IsMulticast() {
		conn, err = net.ListenMulticastUDP(udpNetwork(loc), nil, addr)
	} else {
		conn, err = net.ListenUDP(udpNetwork(loc), addr)
	}
	if err != nil {
		return nil, err
	}
	_ = conn.SetReadBuffer(udpReadBufferSize)

	ep := &udpEndpoint{conn: conn, onRecv: onRecv, done: make(chan struct{})}
	go ep.readLoop(loc.Kind)
	return ep, nil
}

// dialUDP opens a send-only UDP socket for unicast/multicast output to
// dst; no local port is bound to a fixed address.
func dialUDP(dst rtpstypes.Locator) (*udpEndpoint, error) {
	conn, err := net.ListenUDP(udpNetwork(dst), nil)
	if err != nil {
		return nil, err
	}
	return &udpEndpoint{conn: conn, done: make(chan struct{})}, nil
}

func udpNetwork(loc rtpstypes.Locator) string {
	if loc.Kind == rtpstypes.TransportUDPv6 {
		return "udp6"
	}
	return "udp4"
}

func (e *udpEndpoint) readLoop(kind rtpstypes.TransportKind) {
	buf := make([]byte, udpReadBufferSize)
	for {
		n, from, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-e.done:
				return
			default:
				continue
			}
		}
		if e.onRecv == nil {
			continue
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		e.onRecv(rtpstypes.UDPLocator(from.IP, uint32(from.Port)), payload)
	}
}

func (e *udpEndpoint) send(dst rtpstypes.Locator, payload []byte) error {
	addr := &net.UDPAddr{IP: dst.IP(), Port: int(dst.Port)}
	_, err := e.conn.WriteToUDP(payload, addr)
	return err
}

func (e *udpEndpoint) close() {
	close(e.done)
	_ = e.conn.Close()
}
