package rtpstypes

import (
	"time"

	"github.com/cespare/xxhash/v2"
)

// InstanceKey identifies a logically-named stream of samples within a
// topic (§3 "Instance / Key"). It is the xxhash of the canonical key-field
// bytes, paired with those bytes for exact comparison on hash collision.
type InstanceKey struct {
	Hash     uint64
	Canonical string
}

// NewInstanceKey derives an InstanceKey from the canonical (already
// key-field-extracted) byte encoding of a sample. xxhash is used rather
// than a cryptographic hash because instance-key lookups sit on HDDS's
// hottest path (every write and every take) and do not need collision
// resistance against an adversary, only good distribution.
func NewInstanceKey(canonical []byte) InstanceKey {
	return InstanceKey{Hash: xxhash.Sum64(canonical), Canonical: string(canonical)}
}

// StatusInfo flags carried on a sample (§3 "Sample"), mirroring the
// STATUS_INFO inline-QoS parameter's bit layout.
type StatusInfo uint32

const (
	StatusDisposed     StatusInfo = 1 << 0
	StatusUnregistered StatusInfo = 1 << 1
	StatusKeyOnly      StatusInfo = 1 << 2
	StatusFiltered     StatusInfo = 1 << 3
)

func (s StatusInfo) Disposed() bool     { return s&StatusDisposed != 0 }
func (s StatusInfo) Unregistered() bool { return s&StatusUnregistered != 0 }
func (s StatusInfo) KeyOnly() bool      { return s&StatusKeyOnly != 0 }

// Sample is the quadruple of §3 plus its flags and derived instance key.
type Sample struct {
	WriterGUID      GUID
	SequenceNumber  SequenceNumber
	SourceTimestamp time.Time
	ReceptionTime   time.Time
	Payload         []byte
	Status          StatusInfo
	InlineQoS       bool
	Instance        InstanceKey
	// OwnershipStrength is the writer's strength at the time of write,
	// snapshotted for ownership arbitration tie-breaks (§4.9).
	OwnershipStrength int32
}

// Identity returns the (writer GUID, sequence number) pair that uniquely
// identifies this sample for de-duplication purposes (§3 Invariants,
// §8 "no duplicate delivery").
type Identity struct {
	Writer GUID
	Seq    SequenceNumber
}

func (s *Sample) Identity() Identity {
	return Identity{Writer: s.WriterGUID, Seq: s.SequenceNumber}
}
