// Package cdr implements the CDR/XCDR1/XCDR2 wire codec (§4.1): the
// encapsulation preamble, alignment rules, and the generic encode/decode
// dispatch driven by a typedesc.Descriptor so readers/writers can bind to
// a type by name without compile-time generated marshalling code.
package cdr

import (
	"encoding/binary"

	"github.com/hdds-io/hdds/internal/hddserr"
)

// Encapsulation is the 2-byte identifier in the 4-byte CDR preamble that
// selects the wire encoding (§4.1).
type Encapsulation uint16

const (
	CDR_BE     Encapsulation = 0x0000
	CDR_LE     Encapsulation = 0x0001
	PL_CDR_BE  Encapsulation = 0x0002
	PL_CDR_LE  Encapsulation = 0x0003
	CDR2_BE    Encapsulation = 0x0006
	CDR2_LE    Encapsulation = 0x0007
	D_CDR2_BE  Encapsulation = 0x0008
	D_CDR2_LE  Encapsulation = 0x0009
	PL_CDR2_BE Encapsulation = 0x000A
	PL_CDR2_LE Encapsulation = 0x000B
)

// NativeEncapsulation is the encapsulation HDDS produces for a given
// extensibility: XCDR2-LE for final types, D-XCDR2-LE for
// appendable/mutable ones (§4.1 "Native *produced* encoding").
func NativeEncapsulation(mutable, appendable bool) Encapsulation {
	switch {
	case mutable, appendable:
		return D_CDR2_LE
	default:
		return CDR2_LE
	}
}

// IsLittleEndian reports the byte order selected by an encapsulation id;
// every id in this family uses the low bit as the LE/BE flag.
func (e Encapsulation) IsLittleEndian() bool { return e&1 == 1 }

// IsXCDR2 reports whether e belongs to the XCDR2/D-CDR2/PL-CDR2 family,
// which uses 4-byte (rather than 8-byte) maximum alignment and DHEADERs.
func (e Encapsulation) IsXCDR2() bool { return e >= CDR2_BE }

// IsParameterList reports whether e is one of the PL_CDR / PL_CDR2
// variants used for inline QoS and SEDP payloads (§4.2).
func (e Encapsulation) IsParameterList() bool {
	return e == PL_CDR_BE || e == PL_CDR_LE || e == PL_CDR2_BE || e == PL_CDR2_LE
}

// IsDelimited reports whether e carries a DHEADER (D-CDR2 or PL-CDR2).
func (e Encapsulation) IsDelimited() bool {
	return e == D_CDR2_BE || e == D_CDR2_LE || e == PL_CDR2_BE || e == PL_CDR2_LE
}

func (e Encapsulation) Valid() bool {
	switch e {
	case CDR_BE, CDR_LE, PL_CDR_BE, PL_CDR_LE, CDR2_BE, CDR2_LE, D_CDR2_BE, D_CDR2_LE, PL_CDR2_BE, PL_CDR2_LE:
		return true
	default:
		return false
	}
}

func (e Encapsulation) byteOrder() binary.ByteOrder {
	if e.IsLittleEndian() {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// ReadPreamble parses the 4-byte encapsulation preamble from the front of
// buf, returning the encapsulation and the remaining payload.
func ReadPreamble(buf []byte) (Encapsulation, []byte, error) {
	if len(buf) < 4 {
		return 0, nil, hddserr.New("cdr.ReadPreamble", hddserr.Protocol, "truncated: %d bytes", len(buf))
	}
	enc := Encapsulation(binary.BigEndian.Uint16(buf[0:2]))
	if !enc.Valid() {
		return 0, nil, hddserr.New("cdr.ReadPreamble", hddserr.Protocol, "unknown_encapsulation: %#04x", uint16(enc))
	}
	// options (buf[2:4]) are reserved, always 0 on the wire we produce and
	// ignored on decode per the interoperability profile.
	return enc, buf[4:], nil
}

// WritePreamble appends the 4-byte encapsulation preamble to buf.
func WritePreamble(buf []byte, enc Encapsulation) []byte {
	var hdr [4]byte
	binary.BigEndian.PutUint16(hdr[0:2], uint16(enc))
	return append(buf, hdr[:]...)
}
