package rtpstypes

import "github.com/hdds-io/hdds/internal/hddserr"

// SequenceNumber is a 64-bit, per-writer monotonically increasing counter
// starting at 1 (§3). It is serialized on the wire as (high int32, low uint32).
type SequenceNumber uint64

// SequenceNumberUnknown is the RTPS sentinel value for "no sequence number".
const SequenceNumberUnknown SequenceNumber = 0

// High returns the wire-format high 32 bits.
func (s SequenceNumber) High() int32 { return int32(uint64(s) >> 32) }

// Low returns the wire-format low 32 bits.
func (s SequenceNumber) Low() uint32 { return uint32(s) }

// SequenceNumberFromParts reconstructs a SequenceNumber from its wire halves.
func SequenceNumberFromParts(high int32, low uint32) SequenceNumber {
	return SequenceNumber(uint64(uint32(high))<<32 | uint64(low))
}

// SequenceCounter is the writer-side monotonic allocator. Sequence numbers
// are never reused; an attempt to advance past the 64-bit range is a fatal
// invariant violation (§3 Invariants).
type SequenceCounter struct {
	last SequenceNumber
}

// Next allocates and returns the next sequence number, starting at 1.
func (c *SequenceCounter) Next() (SequenceNumber, error) {
	if c.last == ^SequenceNumber(0) {
		return 0, hddserr.New("SequenceCounter.Next", hddserr.Fatal, "sequence number overflow")
	}
	c.last++
	return c.last, nil
}

// Last returns the most recently allocated sequence number (0 if none yet).
func (c *SequenceCounter) Last() SequenceNumber { return c.last }

// SequenceNumberSet is a sparse bitmap of sequence numbers relative to a
// base, used by ACKNACK/NACK_FRAG submessages (§4.2, §4.4).
type SequenceNumberSet struct {
	Base   SequenceNumber
	Bitmap []uint32 // one bit per sequence number starting at Base, MSB-first per word
}

// NewSequenceNumberSet builds a set over [base, base+numBits).
func NewSequenceNumberSet(base SequenceNumber, numBits int) SequenceNumberSet {
	words := (numBits + 31) / 32
	return SequenceNumberSet{Base: base, Bitmap: make([]uint32, words)}
}

// Set marks seq as present in the set (no-op if out of range or before Base).
func (s *SequenceNumberSet) Set(seq SequenceNumber) {
	if seq < s.Base {
		return
	}
	idx := int(seq - s.Base)
	word, bit := idx/32, idx%32
	if word >= len(s.Bitmap) {
		return
	}
	s.Bitmap[word] |= 1 << (31 - bit)
}

// Has reports whether seq is marked.
func (s SequenceNumberSet) Has(seq SequenceNumber) bool {
	if seq < s.Base {
		return false
	}
	idx := int(seq - s.Base)
	word, bit := idx/32, idx%32
	if word >= len(s.Bitmap) {
		return false
	}
	return s.Bitmap[word]&(1<<(31-bit)) != 0
}

// Empty reports whether no bits are set (an ACKNACK with Empty()==true is a
// pure acknowledgment carrying no NACKs).
func (s SequenceNumberSet) Empty() bool {
	for _, w := range s.Bitmap {
		if w != 0 {
			return false
		}
	}
	return true
}

// ForEach invokes fn for every set sequence number, in ascending order.
func (s SequenceNumberSet) ForEach(fn func(SequenceNumber)) {
	for i, w := range s.Bitmap {
		if w == 0 {
			continue
		}
		for bit := 0; bit < 32; bit++ {
			if w&(1<<(31-bit)) != 0 {
				fn(s.Base + SequenceNumber(i*32+bit))
			}
		}
	}
}
