// Package historycache implements the per-instance sample history that
// backs both writer and reader history caches (§4.3): KEEP_LAST eviction
// and resource-limit enforcement. It does not expire samples by lifespan.
package historycache

import (
	"sync"

	"github.com/hdds-io/hdds/internal/rtpstypes"
)

// chunkCap bounds how many samples live in one chunk before a new one is
// linked on; chunks are pooled so steady-state KEEP_LAST histories never
// allocate on the hot write path.
const chunkCap = 64

var chunkPool = sync.Pool{
	New: func() any {
		return &chunk{samples: make([]rtpstypes.Sample, 0, chunkCap)}
	},
}

// chunk is one link in an instance's sample chain, oldest-to-newest.
type chunk struct {
	prev, next *chunk
	samples    []rtpstypes.Sample
}

func newChunk() *chunk {
	c := chunkPool.Get().(*chunk)
	c.prev, c.next = nil, nil
	c.samples = c.samples[:0]
	return c
}

func releaseChunk(c *chunk) {
	c.prev, c.next = nil, nil
	chunkPool.Put(c)
}
