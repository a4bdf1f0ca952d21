// Package rtpstypes holds the wire-level identity and addressing types of
// the data model (§3): GUIDs, sequence numbers, locators, and instance
// keys. These are pure value types shared by every other core package.
package rtpstypes

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// GuidPrefix is the 12-byte participant-scoped prefix shared by all of a
// participant's entities.
type GuidPrefix [12]byte

func (p GuidPrefix) String() string {
	return fmt.Sprintf("%x", [12]byte(p))
}

// IsZero reports whether the prefix is the all-zero sentinel.
func (p GuidPrefix) IsZero() bool {
	return p == GuidPrefix{}
}

// NewGuidPrefix derives a participant prefix from a fresh random UUIDv4:
// the first 12 bytes of its 16-byte representation are used directly,
// which is enough entropy to make cross-host collisions practically
// impossible without requiring a clock or MAC address source.
func NewGuidPrefix() GuidPrefix {
	var p GuidPrefix
	id := uuid.New()
	copy(p[:], id[:12])
	return p
}

// EntityId identifies one entity (participant itself, a writer, a reader,
// or a builtin discovery endpoint) within a participant.
type EntityId [4]byte

// Well-known entity-id kinds used for builtin discovery endpoints (§4.7).
var (
	EntityIdParticipant          = EntityId{0x00, 0x00, 0x01, 0xc1}
	EntityIdSPDPBuiltinWriter    = EntityId{0x00, 0x01, 0x00, 0xc2}
	EntityIdSPDPBuiltinReader    = EntityId{0x00, 0x01, 0x00, 0xc7}
	EntityIdSEDPPubWriter        = EntityId{0x00, 0x03, 0x00, 0xc2}
	EntityIdSEDPPubReader        = EntityId{0x00, 0x03, 0x00, 0xc7}
	EntityIdSEDPSubWriter        = EntityId{0x00, 0x04, 0x00, 0xc2}
	EntityIdSEDPSubReader        = EntityId{0x00, 0x04, 0x00, 0xc7}
	EntityIdSEDPTopicWriter      = EntityId{0x00, 0x02, 0x00, 0xc2}
	EntityIdSEDPTopicReader      = EntityId{0x00, 0x02, 0x00, 0xc7}
)

// GUID is the 16-byte global identifier of one entity: 12-byte participant
// prefix plus a 4-byte entity id.
type GUID struct {
	Prefix GuidPrefix
	Entity EntityId
}

func (g GUID) String() string {
	return fmt.Sprintf("%s:%x", g.Prefix, g.Entity)
}

// Bytes renders the GUID as its 16-byte wire form.
func (g GUID) Bytes() [16]byte {
	var b [16]byte
	copy(b[:12], g.Prefix[:])
	copy(b[12:], g.Entity[:])
	return b
}

// GUIDFromBytes parses the 16-byte wire form back into a GUID.
func GUIDFromBytes(b [16]byte) GUID {
	var g GUID
	copy(g.Prefix[:], b[:12])
	copy(g.Entity[:], b[12:])
	return g
}

// nextUserEntityCounter is process-local monotonically increasing state
// used by EntityIdAllocator; it is never a package-level global consulted
// directly by callers — see EntityIdAllocator.
type nextUserEntityCounter = uint32

// EntityIdAllocator hands out fresh, non-builtin entity ids for
// user-created writers/readers within one participant. It is owned by a
// Participant value, never a package-level singleton, per the Design
// Notes' prohibition on process-wide mutable state.
type EntityIdAllocator struct {
	next nextUserEntityCounter
}

// Kind tags used in the low byte of a user entity id, matching RTPS' own
// convention of low-nibble kind tags.
const (
	kindWriterWithKey    byte = 0x02
	kindReaderWithKey    byte = 0x07
	kindWriterNoKey      byte = 0x03
	kindReaderNoKey      byte = 0x04
)

// NextWriter allocates a fresh writer entity id.
func (a *EntityIdAllocator) NextWriter(hasKey bool) EntityId {
	return a.next_(hasKey, true)
}

// NextReader allocates a fresh reader entity id.
func (a *EntityIdAllocator) NextReader(hasKey bool) EntityId {
	return a.next_(hasKey, false)
}

func (a *EntityIdAllocator) next_(hasKey bool, writer bool) EntityId {
	a.next++
	var id EntityId
	binary.BigEndian.PutUint32(id[:], a.next<<8)
	switch {
	case writer && hasKey:
		id[3] = kindWriterWithKey
	case writer && !hasKey:
		id[3] = kindWriterNoKey
	case !writer && hasKey:
		id[3] = kindReaderWithKey
	default:
		id[3] = kindReaderNoKey
	}
	return id
}
