package transport

import (
	"crypto/tls"
	"encoding/binary"
	"io"
	"math/rand"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/hdds-io/hdds/internal/rtpstypes"
)

// tcpState is the connection state machine named in §4.5.
type tcpState int

const (
	tcpConnecting tcpState = iota
	tcpConnected
	tcpDraining
	tcpClosed
)

const (
	tcpReconnectInitial = 100 * time.Millisecond
	tcpReconnectCap     = 30 * time.Second
)

type tcpEndpoint struct {
	mu        sync.Mutex
	state     tcpState
	conn      net.Conn
	tlsConfig *tls.Config
	remote    rtpstypes.Locator
	onRecv    func(from rtpstypes.Locator, payload []byte)
	done      chan struct{}
}

// dialTCP opens an outbound connection to dst with length-prefixed
// framing, optionally wrapped in TLS (§4.5). A failed initial dial is
// returned as an error without retrying; capped exponential backoff
// applies only to reconnecting after an established connection drops.
func dialTCP(dst rtpstypes.Locator, tlsConfig *tls.Config) (*tcpEndpoint, error) {
	e := &tcpEndpoint{remote: dst, tlsConfig: tlsConfig, done: make(chan struct{})}
	if err := e.connect(); err != nil {
		return nil, err
	}
	return e, nil
}

// listenTCP accepts inbound connections at loc, each framed the same
// way as an outbound connection.
func listenTCP(loc rtpstypes.Locator, tlsConfig *tls.Config, onRecv func(rtpstypes.Locator, []byte)) (*tcpEndpoint, error) {
	ln, err := net.Listen(tcpNetwork(loc), net.JoinHostPort(loc.IP().String(), strconv.Itoa(int(loc.Port))))
	if err != nil {
		return nil, err
	}
	e := &tcpEndpoint{remote: loc, tlsConfig: tlsConfig, onRecv: onRecv, done: make(chan struct{})}
	go e.acceptLoop(ln)
	return e, nil
}

func tcpNetwork(loc rtpstypes.Locator) string {
	if loc.Kind == rtpstypes.TransportTCPv6 {
		return "tcp6"
	}
	return "tcp4"
}


func (e *tcpEndpoint) acceptLoop(ln net.Listener) {
	go func() {
		<-e.done
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go e.serve(conn)
	}
}

func (e *tcpEndpoint) serve(conn net.Conn) {
	e.mu.Lock()
	e.conn = conn
	e.state = tcpConnected
	e.mu.Unlock()
	e.readLoop(conn)
}

// connect makes one dial attempt; reconnect owns the retry/backoff loop.
func (e *tcpEndpoint) connect() error {
	e.mu.Lock()
	e.state = tcpConnecting
	e.mu.Unlock()

	dialer := net.Dialer{Timeout: 10 * time.Second}
	addr := net.JoinHostPort(e.remote.IP().String(), strconv.Itoa(int(e.remote.Port)))
	var conn net.Conn
	var err error
	if e.tlsConfig != nil {
		conn, err = tls.DialWithDialer(&dialer, tcpNetwork(e.remote), addr, e.tlsConfig)
	} else {
		conn, err = dialer.Dial(tcpNetwork(e.remote), addr)
	}
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.conn = conn
	e.state = tcpConnected
	e.mu.Unlock()
	go e.readLoop(conn)
	return nil
}

// reconnect retries the dial with capped exponential backoff until it
// succeeds or the endpoint is closed.
func (e *tcpEndpoint) reconnect() {
	delay := tcpReconnectInitial
	for {
		select {
		case <-e.done:
			return
		case <-time.After(delay + time.Duration(rand.Int63n(int64(delay/4+1)))):
		}
		if err := e.connect(); err == nil {
			return
		}
		delay *= 2
		if delay > tcpReconnectCap {
			delay = tcpReconnectCap
		}
	}
}

func (e *tcpEndpoint) readLoop(conn net.Conn) {
	var lenBuf [4]byte
	for {
		if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
			break
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		payload := make([]byte, n)
		if _, err := io.ReadFull(conn, payload); err != nil {
			break
		}
		if e.onRecv != nil {
			e.onRecv(e.remote, payload)
		}
	}

	e.mu.Lock()
	wasClosed := e.state == tcpClosed
	e.state = tcpDraining
	e.mu.Unlock()

	if !wasClosed {
		go e.reconnect()
	}
}

func (e *tcpEndpoint) send(payload []byte) error {
	e.mu.Lock()
	conn := e.conn
	state := e.state
	e.mu.Unlock()
	if state != tcpConnected || conn == nil {
		return io.ErrClosedPipe
	}

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := conn.Write(hdr[:]); err != nil {
		return err
	}
	_, err := conn.Write(payload)
	return err
}

func (e *tcpEndpoint) close() {
	e.mu.Lock()
	e.state = tcpClosed
	conn := e.conn
	e.mu.Unlock()
	close(e.done)
	if conn != nil {
		_ = conn.Close()
	}
}
