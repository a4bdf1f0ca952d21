package hdds

import "github.com/hdds-io/hdds/internal/rtpstypes"

// Topic names a data stream and the type carried on it. A Descriptor for
// TypeName can be stored via Participant.RegisterDescriptor (§6 "Dynamic
// types"); instance-key derivation and the content filter do not use it.
type Topic struct {
	Name     string
	TypeName string
}

// WriterHandle and ReaderHandle are opaque references an application
// holds instead of a *Writer/*Reader pointer (§8 "Cyclic ownership":
// "endpoints reference the participant by opaque handle ... never by
// owning pointer"). The GUID is never reissued by EntityIdAllocator
// within a participant's lifetime, so a handle outliving its entity's
// Destroy resolves to "not found" rather than a reused, unrelated entity
// — the same use-after-free safety an index+generation arena buys, keyed
// on an identifier this codebase already treats as globally unique.
type WriterHandle struct{ guid rtpstypes.GUID }

type ReaderHandle struct{ guid rtpstypes.GUID }

// WaitsetHandle is likewise opaque; a participant may own several
// waitsets distinguished only by this id.
type WaitsetHandle struct{ id uint64 }

// TakeStatus reports what Reader.Take found.
type TakeStatus int

const (
	TakeOK TakeStatus = iota
	TakeEmpty
	TakeTimeout
)
