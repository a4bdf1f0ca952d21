package transport

import (
	"sync"

	"github.com/hdds-io/hdds/internal/hddserr"
	"github.com/hdds-io/hdds/internal/rtpstypes"
)

// shmRingCap is the number of fixed-size slots in one host's
// shared-memory ring (§4.5); all writers on that host share the ring.
const shmRingCap = 256

// shmSegment is the in-process stand-in for the POSIX shared-memory
// ring described in §4.5: a lock-free SPSC ring would normally be
// backed by mmap'd memory and a futex-style wake primitive; within one
// process, a buffered channel stands in for it without unsafe syscalls.
// A send never waits for a free slot: on a full ring it fails with a
// ResourceLimits error. Segments are keyed by host id so every writer/reader
// pair on the same host shares one.
type shmSegment struct {
	slots chan []byte
}

var (
	shmRegistryMu sync.Mutex
	shmRegistry   = make(map[uint64]*shmSegment)
)

func shmSegmentFor(hostID uint64) *shmSegment {
	shmRegistryMu.Lock()
	defer shmRegistryMu.Unlock()
	seg, ok := shmRegistry[hostID]
	if !ok {
		seg = &shmSegment{slots: make(chan []byte, shmRingCap)}
		shmRegistry[hostID] = seg
	}
	return seg
}

type shmEndpoint struct {
	seg    *shmSegment
	local  rtpstypes.Locator
	onRecv func(from rtpstypes.Locator, payload []byte)
	done   chan struct{}
}

// bindSHM attaches to the segment for loc.HostID and starts delivering
// enqueued frames to onRecv. The reader's channel receive takes a queued
// frame at once and parks only while the ring is empty (§4.5).
func bindSHM(loc rtpstypes.Locator, onRecv func(rtpstypes.Locator, []byte)) (*shmEndpoint, error) {
	e := &shmEndpoint{seg: shmSegmentFor(loc.HostID), local: loc, onRecv: onRecv, done: make(chan struct{})}
	go e.readLoop()
	return e, nil
}

// dialSHM attaches to the segment for dst.HostID for sending only. It
// requires the caller's own hostID to match dst.HostID, since SHM is
// only viable between endpoints on the same host (§4.5).
func dialSHM(dst rtpstypes.Locator, hostID uint64) (*shmEndpoint, error) {
	if dst.HostID != hostID {
		return nil, hddserr.New("transport.dialSHM", hddserr.Transport, "shm locator host %d does not match local host %d", dst.HostID, hostID)
	}
	return &shmEndpoint{seg: shmSegmentFor(dst.HostID), local: dst, done: make(chan struct{})}, nil
}

func (e *shmEndpoint) readLoop() {
	for {
		select {
		case payload, ok := <-e.seg.slots:
			if !ok {
				return
			}
			if e.onRecv != nil {
				e.onRecv(e.local, payload)
			}
		case <-e.done:
			return
		}
	}
}

func (e *shmEndpoint) send(payload []byte) error {
	select {
	case e.seg.slots <- payload:
		return nil
	default:
		return hddserr.New("transport.shm.send", hddserr.ResourceLimits, "ring full for host %d", e.local.HostID)
	}
}

func (e *shmEndpoint) close() {
	close(e.done)
}
